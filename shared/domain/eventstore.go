package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrVersionConflict indica que el stream fue modificado por otro escritor
// desde que se cargó el aggregate (optimistic concurrency).
var ErrVersionConflict = errors.New("event stream version conflict")

// RecordedEvent es un evento tal y como queda persistido en el event store:
// payload serializado más metadatos de posición.
type RecordedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	StreamName string    `json:"stream_name"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	Version    int       `json:"version"`    // posición 1..n dentro del stream
	GlobalSeq  int64     `json:"global_seq"` // posición en el feed global, para suscripciones
	RecordedAt time.Time `json:"recorded_at"`
}

// EventStore es el contrato de un log de eventos append-only por stream.
//
// Append escribe los eventos solo si el stream tiene exactamente
// expectedVersion eventos; en caso contrario devuelve ErrVersionConflict.
// Los mensajes de outbox se insertan en la MISMA transacción que los
// eventos: o se persisten ambos o ninguno, nunca puede quedar un evento
// guardado sin su fila de outbox.
type EventStore interface {
	Append(ctx context.Context, stream string, expectedVersion int, events []RecordedEvent, outbox []OutboxMessage) error

	// Load devuelve el histórico completo y ordenado de un stream.
	// Un stream inexistente devuelve slice vacío, no error.
	Load(ctx context.Context, stream string) ([]RecordedEvent, error)

	// ReadAll devuelve hasta limit eventos del feed global con
	// GlobalSeq > after, en orden de secuencia. Lo usan las suscripciones
	// de proyecciones.
	ReadAll(ctx context.Context, after int64, limit int) ([]RecordedEvent, error)
}
