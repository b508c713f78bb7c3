package projections

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/orderflow/internal/order/domain"
	"github.com/davicafu/orderflow/internal/order/infra/outbound/eventsourced"
	sharedDomain "github.com/davicafu/orderflow/shared/domain"
	"github.com/davicafu/orderflow/tests/mocks"
)

// buildOrderFeed persiste un pedido completo y devuelve su feed de eventos.
func buildOrderFeed(t *testing.T) (*domain.Order, []sharedDomain.RecordedEvent) {
	t.Helper()
	ctx := context.Background()
	store := mocks.NewInMemoryEventStore()
	repo := eventsourced.NewOrderRepository(store)

	order, err := domain.NewOrder(domain.NewCustomerID())
	require.NoError(t, err)

	price, err := domain.NewMoneyFromFloat(100, "DKK")
	require.NoError(t, err)
	require.NoError(t, order.AddItem(domain.NewProductID(), "Café en grano", 2, price))

	teaPrice, err := domain.NewMoneyFromFloat(25, "DKK")
	require.NoError(t, err)
	require.NoError(t, order.AddItem(domain.NewProductID(), "Té verde", 3, teaPrice))

	addr, err := domain.NewAddress("Nørrebrogade 12", "2200", "København")
	require.NoError(t, err)
	require.NoError(t, order.SetShippingAddress(addr))
	require.NoError(t, order.ValidateOrder())
	require.NoError(t, repo.Save(ctx, order))

	feed, err := store.ReadAll(ctx, 0, 100)
	require.NoError(t, err)
	return order, feed
}

func TestSummaryProjector_BuildsSummary(t *testing.T) {
	ctx := context.Background()
	order, feed := buildOrderFeed(t)

	docs := mocks.NewInMemoryDocStore()
	projector := NewSummaryProjector(docs, zap.NewNop())
	for _, record := range feed {
		require.NoError(t, projector.Handle(ctx, record))
	}

	var doc OrderSummaryDoc
	found, err := docs.Load(ctx, SummaryKey(order.ID().String()), &doc)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, order.ID().String(), doc.OrderID)
	assert.Equal(t, order.CustomerID().String(), doc.CustomerID)
	assert.Equal(t, string(domain.StatusPlaced), doc.Status)
	assert.Equal(t, 2, doc.ItemCount)
	assert.True(t, doc.TotalAmount.Equal(decimal.NewFromInt(275)),
		"total esperado 275, obtenido %s", doc.TotalAmount)
	assert.Equal(t, "DKK", doc.Currency)
	assert.Equal(t, order.Version(), doc.LastVersion)
}

func TestSummaryProjector_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	order, feed := buildOrderFeed(t)

	docs := mocks.NewInMemoryDocStore()
	projector := NewSummaryProjector(docs, zap.NewNop())

	// entrega at-least-once: el feed completo llega dos veces y algún
	// evento suelto una tercera
	for i := 0; i < 2; i++ {
		for _, record := range feed {
			require.NoError(t, projector.Handle(ctx, record))
		}
	}
	require.NoError(t, projector.Handle(ctx, feed[1]))

	var doc OrderSummaryDoc
	found, err := docs.Load(ctx, SummaryKey(order.ID().String()), &doc)
	require.NoError(t, err)
	require.True(t, found)

	// las actualizaciones aditivas no se duplican
	assert.Equal(t, 2, doc.ItemCount)
	assert.True(t, doc.TotalAmount.Equal(decimal.NewFromInt(275)))
	assert.Equal(t, order.Version(), doc.LastVersion)
}

func TestSummaryProjector_SkipsUnknownEventType(t *testing.T) {
	docs := mocks.NewInMemoryDocStore()
	projector := NewSummaryProjector(docs, zap.NewNop())

	err := projector.Handle(context.Background(), sharedDomain.RecordedEvent{
		EventID:    uuid.New(),
		StreamName: "order-" + uuid.NewString(),
		EventType:  "OrderTeleportedEvent",
		Payload:    []byte(`{}`),
		Version:    1,
		RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Zero(t, docs.Len(), "un tipo desconocido no crea documento")
}

func TestDetailsProjector_BuildsDetails(t *testing.T) {
	ctx := context.Background()
	order, feed := buildOrderFeed(t)

	docs := mocks.NewInMemoryDocStore()
	projector := NewDetailsProjector(docs, zap.NewNop())
	for _, record := range feed {
		require.NoError(t, projector.Handle(ctx, record))
	}

	var doc OrderDetailsDoc
	found, err := docs.Load(ctx, DetailsKey(order.ID().String()), &doc)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, string(domain.StatusPlaced), doc.Status)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "Café en grano", doc.Items[0].ProductName)
	assert.Equal(t, 2, doc.Items[0].Quantity)
	require.NotNil(t, doc.ShippingAddress)
	assert.Equal(t, "2200", doc.ShippingAddress.ZipCode)
}

func TestDetailsProjector_TracksLifecycleFields(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewInMemoryEventStore()
	repo := eventsourced.NewOrderRepository(store)

	order, err := domain.NewOrder(domain.NewCustomerID())
	require.NoError(t, err)
	price, err := domain.NewMoneyFromFloat(100, "DKK")
	require.NoError(t, err)
	require.NoError(t, order.AddItem(domain.NewProductID(), "Café en grano", 2, price))
	addr, err := domain.NewAddress("Nørrebrogade 12", "2200", "København")
	require.NoError(t, err)
	require.NoError(t, order.SetShippingAddress(addr))
	require.NoError(t, order.ValidateOrder())
	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.MarkPaymentApproved())
	require.NoError(t, order.StartProcessing())
	require.NoError(t, order.ProcessShippingStatusUpdate("Shipped", "TRACK123"))
	require.NoError(t, repo.Save(ctx, order))

	feed, err := store.ReadAll(ctx, 0, 100)
	require.NoError(t, err)

	docs := mocks.NewInMemoryDocStore()
	projector := NewDetailsProjector(docs, zap.NewNop())
	for _, record := range feed {
		require.NoError(t, projector.Handle(ctx, record))
	}

	var doc OrderDetailsDoc
	found, err := docs.Load(ctx, DetailsKey(order.ID().String()), &doc)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, string(domain.StatusShipped), doc.Status)
	assert.Equal(t, "TRACK123", doc.TrackingNumber)
}

func TestDetailsProjector_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	order, feed := buildOrderFeed(t)

	docs := mocks.NewInMemoryDocStore()
	projector := NewDetailsProjector(docs, zap.NewNop())
	for i := 0; i < 3; i++ {
		for _, record := range feed {
			require.NoError(t, projector.Handle(ctx, record))
		}
	}

	var doc OrderDetailsDoc
	found, err := docs.Load(ctx, DetailsKey(order.ID().String()), &doc)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, doc.Items, 2, "las líneas no se duplican con redelivery")
}
