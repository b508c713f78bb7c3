package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus es el ciclo de vida de un mensaje de outbox.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxProcessed  OutboxStatus = "processed"
	OutboxFailed     OutboxStatus = "failed"
)

// MaxOutboxRetries es el número de intentos de publicación antes de
// dead-letter: al llegar a este contador el mensaje pasa a OutboxFailed y
// requiere intervención manual.
const MaxOutboxRetries = 5

// OutboxMessage representa un evento de dominio pendiente de publicar en el
// broker. Se crea Pending en la misma transacción que persiste el evento.
type OutboxMessage struct {
	ID          uuid.UUID    `json:"id"`
	AggregateID string       `json:"aggregate_id"`
	EventType   string       `json:"event_type"` // ej. "OrderCreatedEvent"
	Payload     []byte       `json:"payload"`    // evento serializado
	Status      OutboxStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	RetryCount  int          `json:"retry_count"`
}

// NewOutboxMessage crea un mensaje pendiente para un evento ya serializado.
func NewOutboxMessage(aggregateID, eventType string, payload []byte) OutboxMessage {
	return OutboxMessage{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Status:      OutboxPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// OutboxStore define el contrato para acceder a la tabla outbox.
// Es una interfaz más pequeña que la del event store completo,
// conteniendo solo los métodos que el worker necesita.
type OutboxStore interface {
	// SaveMessages persiste mensajes en estado Pending.
	SaveMessages(ctx context.Context, messages []OutboxMessage) error

	// FetchPending obtiene hasta limit mensajes Pending, los más antiguos primero.
	FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error)

	// MarkProcessed marca un mensaje como publicado y registra processed_at.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed incrementa retry_count; al llegar a MaxOutboxRetries el
	// mensaje queda Failed (dead-letter), si no vuelve a Pending para reintento.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
