package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNilEvent se devuelve cuando se intenta aplicar un evento nulo.
var ErrNilEvent = errors.New("cannot apply a nil event")

// Event es el contrato mínimo de un evento de dominio: identidad,
// momento de ocurrencia y un nombre de tipo estable para serialización.
type Event interface {
	EventID() uuid.UUID
	OccurredAt() time.Time
	EventType() string
}

// Root lo implementa cada aggregate concreto: When muta el estado según el
// evento y EnsureValidState comprueba las invariantes tras cada mutación.
type Root interface {
	When(event Event)
	EnsureValidState() error
}

// AggregateBase aporta la maquinaria de event sourcing común a todos los
// aggregates: versión, eventos sin confirmar y el protocolo Raise/Replay.
// Se embebe en el aggregate concreto.
type AggregateBase struct {
	version     int
	uncommitted []Event
}

// Version es el número de eventos aplicados; se usa para optimistic concurrency.
func (b *AggregateBase) Version() int {
	return b.version
}

// UncommittedEvents devuelve los eventos acumulados desde el último Clear,
// en orden de aplicación.
func (b *AggregateBase) UncommittedEvents() []Event {
	out := make([]Event, len(b.uncommitted))
	copy(out, b.uncommitted)
	return out
}

// ClearEvents vacía la lista de eventos sin confirmar. Solo debe llamarse
// tras una persistencia exitosa.
func (b *AggregateBase) ClearEvents() {
	b.uncommitted = nil
}

// Raise aplica un evento nuevo: muta el estado vía When, valida invariantes
// y, solo si son válidas, registra el evento e incrementa la versión.
// Si EnsureValidState falla el evento NO se registra; el llamante debe
// descartar el aggregate en memoria porque When ya mutó el estado.
func (b *AggregateBase) Raise(root Root, event Event) error {
	if event == nil {
		return ErrNilEvent
	}

	root.When(event)

	if err := root.EnsureValidState(); err != nil {
		return err
	}

	b.uncommitted = append(b.uncommitted, event)
	b.version++
	return nil
}

// Replay reconstruye el estado a partir del histórico: aplica When por cada
// evento sin validar invariantes ni acumular eventos sin confirmar (ya
// fueron validados cuando se persistieron). La versión queda en el número
// de eventos reproducidos.
func (b *AggregateBase) Replay(root Root, events []Event) {
	for _, event := range events {
		root.When(event)
	}
	b.version = len(events)
	b.uncommitted = nil
}
