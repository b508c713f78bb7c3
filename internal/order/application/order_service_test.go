package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/orderflow/internal/order/domain"
	"github.com/davicafu/orderflow/internal/order/infra/outbound/eventsourced"
	"github.com/davicafu/orderflow/tests/mocks"
)

// countingRepo envuelve el repositorio real contando llamadas y permitiendo
// inyectar conflictos de versión en Save.
type countingRepo struct {
	inner     domain.OrderRepository
	loads     int
	saves     int
	conflicts int // número de Save que fallarán con ConcurrencyError
}

func (r *countingRepo) Load(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	r.loads++
	return r.inner.Load(ctx, id)
}

func (r *countingRepo) Save(ctx context.Context, order *domain.Order) error {
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		return &domain.ConcurrencyError{OrderID: order.ID(), ExpectedVersion: order.Version()}
	}
	return r.inner.Save(ctx, order)
}

func newService(t *testing.T) (*OrderService, *countingRepo, *mocks.InMemoryEventStore) {
	t.Helper()
	store := mocks.NewInMemoryEventStore()
	repo := &countingRepo{inner: eventsourced.NewOrderRepository(store)}
	return NewOrderService(repo, zap.NewNop()), repo, store
}

func dkk(t *testing.T, amount float64) domain.Money {
	t.Helper()
	m, err := domain.NewMoneyFromFloat(amount, "DKK")
	require.NoError(t, err)
	return m
}

func TestOrderService_CreateOrder(t *testing.T) {
	svc, _, store := newService(t)

	order, err := svc.CreateOrder(context.Background(), domain.NewCustomerID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, order.Status())
	assert.Equal(t, 1, order.Version())

	// el evento y su fila de outbox quedaron persistidos atómicamente
	messages := store.OutboxMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "OrderCreatedEvent", messages[0].EventType)
}

func TestOrderService_CreateOrder_EmptyCustomer(t *testing.T) {
	svc, repo, _ := newService(t)

	_, err := svc.CreateOrder(context.Background(), domain.CustomerID{})
	assert.ErrorIs(t, err, domain.ErrEmptyCustomerID)
	assert.Zero(t, repo.saves)
}

func TestOrderService_PlaceOrderFlow(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	order, err := svc.CreateOrder(ctx, domain.NewCustomerID())
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, order.ID(), domain.NewProductID(), "Café en grano", 2, dkk(t, 100))
	require.NoError(t, err)

	addr, err := domain.NewAddress("Nørrebrogade 12", "2200", "København")
	require.NoError(t, err)
	_, err = svc.SetShippingAddress(ctx, order.ID(), addr)
	require.NoError(t, err)

	placed, err := svc.ValidateOrder(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlaced, placed.Status())

	// el estado sobrevive a una recarga completa desde el stream
	reloaded, err := svc.GetOrder(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlaced, reloaded.Status())
	assert.Equal(t, placed.Version(), reloaded.Version())
}

func TestOrderService_BusinessRuleErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	order, err := svc.CreateOrder(ctx, domain.NewCustomerID())
	require.NoError(t, err)

	repo.loads, repo.saves = 0, 0
	_, err = svc.ValidateOrder(ctx, order.ID())
	assert.ErrorIs(t, err, domain.ErrNoItems)
	assert.Equal(t, 1, repo.loads, "una violación de regla de negocio no se reintenta")
	assert.Zero(t, repo.saves)
}

func TestOrderService_RetriesOnConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	order, err := svc.CreateOrder(ctx, domain.NewCustomerID())
	require.NoError(t, err)

	// los dos primeros Save chocan; el tercero entra
	repo.conflicts = 2
	repo.loads = 0
	updated, err := svc.AddItem(ctx, order.ID(), domain.NewProductID(), "Café en grano", 1, dkk(t, 60))
	require.NoError(t, err)
	assert.Len(t, updated.Items(), 1)
	assert.Equal(t, 3, repo.loads, "cada reintento recarga el estado fresco")
}

func TestOrderService_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	order, err := svc.CreateOrder(ctx, domain.NewCustomerID())
	require.NoError(t, err)

	repo.conflicts = 100
	_, err = svc.AddItem(ctx, order.ID(), domain.NewProductID(), "Café en grano", 1, dkk(t, 60))
	require.Error(t, err)
	assert.True(t, domain.IsConcurrencyError(err), "el conflicto persistente llega al llamante")
}

func TestOrderService_GetOrder_NotFound(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.GetOrder(context.Background(), domain.NewOrderID())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_PaymentTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	order, err := svc.CreateOrder(ctx, domain.NewCustomerID())
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, order.ID(), domain.NewProductID(), "Café en grano", 2, dkk(t, 100))
	require.NoError(t, err)
	addr, err := domain.NewAddress("Nørrebrogade 12", "2200", "København")
	require.NoError(t, err)
	_, err = svc.SetShippingAddress(ctx, order.ID(), addr)
	require.NoError(t, err)
	_, err = svc.ValidateOrder(ctx, order.ID())
	require.NoError(t, err)

	_, err = svc.RequestPayment(ctx, order.ID())
	require.NoError(t, err)
	_, err = svc.FailPayment(ctx, order.ID(), "insufficient funds")
	require.NoError(t, err)

	final, err := svc.GetOrder(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaymentFailed, final.Status())
	assert.Equal(t, "insufficient funds", final.PaymentFailureReason())
}
