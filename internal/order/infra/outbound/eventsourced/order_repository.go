package eventsourced

import (
	"context"
	"errors"
	"fmt"

	"github.com/davicafu/orderflow/internal/order/domain"
	sharedDomain "github.com/davicafu/orderflow/shared/domain"
	sharedBus "github.com/davicafu/orderflow/shared/platform/bus"
)

// OrderRepository implementa el puerto de persistencia del aggregate sobre un
// event store append-only: Load reproduce el stream y Save anexa los eventos
// sin confirmar junto con sus filas de outbox en una sola operación atómica.
type OrderRepository struct {
	store sharedDomain.EventStore
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// El pedido aporta su propia clave de partición; los mensajes del outbox
// salen al broker keyed por ella para preservar el orden por aggregate.
var _ sharedBus.Keyer = (*domain.Order)(nil)

func NewOrderRepository(store sharedDomain.EventStore) *OrderRepository {
	return &OrderRepository{store: store}
}

// StreamName deriva el nombre del stream de un pedido. Es estable: lo usan
// también las proyecciones para recuperar el OrderID desde un RecordedEvent.
func StreamName(id domain.OrderID) string {
	return "order-" + id.String()
}

func (r *OrderRepository) Load(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	records, err := r.store.Load(ctx, StreamName(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load stream for order %s: %w", id, err)
	}
	if len(records) == 0 {
		return nil, domain.ErrOrderNotFound
	}

	events := make([]sharedDomain.Event, 0, len(records))
	for _, record := range records {
		event, err := domain.DecodeEvent(record.EventType, record.Payload)
		if err != nil {
			return nil, fmt.Errorf("corrupt stream %s at version %d: %w",
				record.StreamName, record.Version, err)
		}
		events = append(events, event)
	}

	return domain.Rehydrate(events)
}

// Save anexa los eventos sin confirmar con chequeo de versión optimista.
// expectedVersion es la versión del stream en el momento de la carga: la
// versión actual menos los eventos aún no persistidos.
func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	events := order.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	expected := order.Version() - len(events)
	stream := StreamName(order.ID())

	records := make([]sharedDomain.RecordedEvent, 0, len(events))
	outbox := make([]sharedDomain.OutboxMessage, 0, len(events))
	for i, event := range events {
		payload, err := domain.EncodeEvent(event)
		if err != nil {
			return err
		}

		records = append(records, sharedDomain.RecordedEvent{
			EventID:    event.EventID(),
			StreamName: stream,
			EventType:  event.EventType(),
			Payload:    payload,
			Version:    expected + i + 1,
			RecordedAt: event.OccurredAt(),
		})
		outbox = append(outbox, sharedDomain.NewOutboxMessage(
			order.ID().String(), event.EventType(), payload,
		))
	}

	if err := r.store.Append(ctx, stream, expected, records, outbox); err != nil {
		if errors.Is(err, sharedDomain.ErrVersionConflict) {
			return &domain.ConcurrencyError{OrderID: order.ID(), ExpectedVersion: expected}
		}
		return fmt.Errorf("failed to append events for order %s: %w", order.ID(), err)
	}

	order.ClearEvents()
	return nil
}
