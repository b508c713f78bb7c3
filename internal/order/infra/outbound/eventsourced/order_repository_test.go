package eventsourced

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/orderflow/internal/order/domain"
	sharedDomain "github.com/davicafu/orderflow/shared/domain"
	"github.com/davicafu/orderflow/tests/mocks"
)

func newPlacedOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder(domain.NewCustomerID())
	require.NoError(t, err)

	price, err := domain.NewMoneyFromFloat(100, "DKK")
	require.NoError(t, err)
	require.NoError(t, order.AddItem(domain.NewProductID(), "Café en grano", 2, price))

	addr, err := domain.NewAddress("Nørrebrogade 12", "2200", "København")
	require.NoError(t, err)
	require.NoError(t, order.SetShippingAddress(addr))
	require.NoError(t, order.ValidateOrder())
	return order
}

func TestOrderRepository_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewInMemoryEventStore()
	repo := NewOrderRepository(store)

	order := newPlacedOrder(t)
	eventCount := len(order.UncommittedEvents())

	require.NoError(t, repo.Save(ctx, order))
	assert.Empty(t, order.UncommittedEvents(), "guardar limpia los eventos sin confirmar")

	loaded, err := repo.Load(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, order.ID(), loaded.ID())
	assert.Equal(t, order.CustomerID(), loaded.CustomerID())
	assert.Equal(t, domain.StatusPlaced, loaded.Status())
	assert.Equal(t, eventCount, loaded.Version())
	assert.Empty(t, loaded.UncommittedEvents())
}

func TestOrderRepository_SaveWritesOutboxPerEvent(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewInMemoryEventStore()
	repo := NewOrderRepository(store)

	order := newPlacedOrder(t)
	eventCount := len(order.UncommittedEvents())
	require.NoError(t, repo.Save(ctx, order))

	messages := store.OutboxMessages()
	require.Len(t, messages, eventCount, "una fila de outbox por evento persistido")
	for _, msg := range messages {
		assert.Equal(t, order.ID().String(), msg.AggregateID)
		assert.Equal(t, sharedDomain.OutboxPending, msg.Status)
		assert.NotEmpty(t, msg.Payload)
	}
	assert.Equal(t, "OrderCreatedEvent", messages[0].EventType)
}

func TestOrderRepository_SaveNothingPending(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewInMemoryEventStore()
	repo := NewOrderRepository(store)

	order := newPlacedOrder(t)
	require.NoError(t, repo.Save(ctx, order))

	// segundo guardado sin eventos nuevos: no toca el store
	require.NoError(t, repo.Save(ctx, order))
	records, err := store.Load(ctx, StreamName(order.ID()))
	require.NoError(t, err)
	assert.Len(t, records, order.Version())
}

func TestOrderRepository_LoadNotFound(t *testing.T) {
	repo := NewOrderRepository(mocks.NewInMemoryEventStore())
	_, err := repo.Load(context.Background(), domain.NewOrderID())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_ConcurrentSaveConflict(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewInMemoryEventStore()
	repo := NewOrderRepository(store)

	order := newPlacedOrder(t)
	require.NoError(t, repo.Save(ctx, order))

	// dos escritores cargan la misma versión
	first, err := repo.Load(ctx, order.ID())
	require.NoError(t, err)
	second, err := repo.Load(ctx, order.ID())
	require.NoError(t, err)

	require.NoError(t, first.MarkPaymentPending())
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.MarkPaymentPending())
	err = repo.Save(ctx, second)
	require.Error(t, err)

	var conflict *domain.ConcurrencyError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, order.ID(), conflict.OrderID)
	assert.True(t, domain.IsConcurrencyError(err))

	// los eventos del perdedor siguen sin confirmar: puede recargar y reintentar
	assert.Len(t, second.UncommittedEvents(), 1)
}

func TestOrderRepository_SaveKeepsEventsOnFailure(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewInMemoryEventStore()
	repo := NewOrderRepository(store)

	order := newPlacedOrder(t)
	store.AppendErr = assert.AnError

	err := repo.Save(ctx, order)
	require.Error(t, err)
	assert.NotEmpty(t, order.UncommittedEvents(), "un fallo de persistencia no limpia los eventos")
}

func TestStreamName(t *testing.T) {
	id := domain.NewOrderID()
	assert.Equal(t, "order-"+id.String(), StreamName(id))
}
