package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

func dkk(t *testing.T, amount float64) Money {
	t.Helper()
	m, err := NewMoneyFromFloat(amount, "DKK")
	require.NoError(t, err)
	return m
}

func testAddress(t *testing.T) Address {
	t.Helper()
	addr, err := NewAddress("Nørrebrogade 12", "2200", "København")
	require.NoError(t, err)
	return addr
}

// placedOrder construye un pedido listo y colocado (Placed).
func placedOrder(t *testing.T) *Order {
	t.Helper()
	order, err := NewOrder(NewCustomerID())
	require.NoError(t, err)
	require.NoError(t, order.AddItem(NewProductID(), "Café en grano", 2, dkk(t, 100)))
	require.NoError(t, order.SetShippingAddress(testAddress(t)))
	require.NoError(t, order.ValidateOrder())
	return order
}

func TestNewOrder(t *testing.T) {
	customerID := NewCustomerID()
	order, err := NewOrder(customerID)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, order.Status())
	assert.Equal(t, customerID, order.CustomerID())
	assert.False(t, order.ID().IsZero())
	assert.Empty(t, order.Items())
	assert.Equal(t, 1, order.Version(), "un evento aplicado: OrderCreated")
	assert.Len(t, order.UncommittedEvents(), 1)

	_, err = NewOrder(CustomerID{})
	assert.ErrorIs(t, err, ErrEmptyCustomerID)
}

func TestOrder_AddItem(t *testing.T) {
	t.Run("cantidad no positiva", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		err := order.AddItem(NewProductID(), "Té verde", 0, dkk(t, 10))
		assert.ErrorIs(t, err, ErrNegativeQuantity)
		assert.Empty(t, order.Items(), "el estado no cambia si la validación falla")

		err = order.AddItem(NewProductID(), "Té verde", -5, dkk(t, 10))
		assert.ErrorIs(t, err, ErrNegativeQuantity)
	})

	t.Run("mismo producto dos veces acumula cantidad", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		productID := NewProductID()

		require.NoError(t, order.AddItem(productID, "Café en grano", 5, dkk(t, 50)))
		require.NoError(t, order.AddItem(productID, "Café en grano", 3, dkk(t, 50)))

		items := order.Items()
		require.Len(t, items, 1, "una sola línea por producto")
		assert.Equal(t, 8, items[0].Quantity())
	})

	t.Run("tope de 30 unidades por producto", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		productID := NewProductID()

		require.NoError(t, order.AddItem(productID, "Café en grano", 28, dkk(t, 50)))
		err := order.AddItem(productID, "Café en grano", 3, dkk(t, 50))
		assert.ErrorIs(t, err, ErrQuantityLimit)
		assert.Equal(t, 28, order.Items()[0].Quantity(), "la cantidad no cambia al fallar")

		err = order.AddItem(NewProductID(), "Palé de té", 31, dkk(t, 5))
		assert.ErrorIs(t, err, ErrQuantityLimit)
	})

	t.Run("moneda distinta a la del pedido", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		require.NoError(t, order.AddItem(NewProductID(), "Café en grano", 2, dkk(t, 100)))

		eur, err := NewMoneyFromFloat(500, "EUR")
		require.NoError(t, err)
		err = order.AddItem(NewProductID(), "Máquina espresso", 1, eur)
		assert.ErrorIs(t, err, ErrCurrencyMismatch)

		// la línea rechazada no existe y el total sigue contando todo
		require.Len(t, order.Items(), 1)
		assert.True(t, order.TotalAmount().Equal(dkk(t, 200)))
	})

	t.Run("tope de productos distintos", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		for i := 0; i < MaxDistinctProducts; i++ {
			require.NoError(t, order.AddItem(NewProductID(), "Producto", 1, dkk(t, 1)))
		}
		err := order.AddItem(NewProductID(), "Uno más", 1, dkk(t, 1))
		assert.ErrorIs(t, err, ErrTooManyProducts)
	})

	t.Run("el precio se captura al añadir", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		productID := NewProductID()
		require.NoError(t, order.AddItem(productID, "Café en grano", 1, dkk(t, 75)))

		// acumular más unidades no toca el precio unitario original
		require.NoError(t, order.AddItem(productID, "Café en grano", 2, dkk(t, 99)))
		assert.True(t, order.Items()[0].UnitPrice().Amount.Equal(decimal.NewFromInt(75)))
	})
}

func TestOrder_RemoveItem(t *testing.T) {
	order, _ := NewOrder(NewCustomerID())
	productID := NewProductID()
	require.NoError(t, order.AddItem(productID, "Café en grano", 2, dkk(t, 50)))

	t.Run("producto inexistente no es error", func(t *testing.T) {
		versionBefore := order.Version()
		require.NoError(t, order.RemoveItem(NewProductID()))
		assert.Equal(t, versionBefore, order.Version(), "sin evento")
	})

	t.Run("elimina la línea", func(t *testing.T) {
		require.NoError(t, order.RemoveItem(productID))
		assert.Empty(t, order.Items())
	})

	t.Run("solo en estado Created", func(t *testing.T) {
		placed := placedOrder(t)
		err := placed.RemoveItem(NewProductID())
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestOrder_ValidateOrder(t *testing.T) {
	t.Run("sin líneas", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		require.NoError(t, order.SetShippingAddress(testAddress(t)))
		err := order.ValidateOrder()
		assert.ErrorIs(t, err, ErrNoItems)
		assert.Equal(t, StatusCreated, order.Status())
	})

	t.Run("sin dirección", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		require.NoError(t, order.AddItem(NewProductID(), "Café en grano", 2, dkk(t, 100)))
		err := order.ValidateOrder()
		assert.ErrorIs(t, err, ErrNoShippingAddress)
		assert.Equal(t, StatusCreated, order.Status())
	})

	t.Run("total por debajo del mínimo", func(t *testing.T) {
		order, _ := NewOrder(NewCustomerID())
		require.NoError(t, order.AddItem(NewProductID(), "Té verde", 1, dkk(t, 40)))
		require.NoError(t, order.SetShippingAddress(testAddress(t)))
		err := order.ValidateOrder()
		assert.ErrorIs(t, err, ErrBelowMinimumTotal)
		assert.Equal(t, StatusCreated, order.Status())
	})

	t.Run("pedido completo queda Placed", func(t *testing.T) {
		order := placedOrder(t)
		assert.Equal(t, StatusPlaced, order.Status())
		assert.True(t, order.TotalAmount().Amount.Equal(decimal.NewFromInt(200)))
	})
}

func TestOrder_FullLifecycle(t *testing.T) {
	order := placedOrder(t)

	require.NoError(t, order.MarkPaymentPending())
	assert.Equal(t, StatusPaymentPending, order.Status())

	require.NoError(t, order.MarkPaymentApproved())
	assert.Equal(t, StatusPaymentApproved, order.Status())

	require.NoError(t, order.StartProcessing())
	assert.Equal(t, StatusProcessing, order.Status())

	require.NoError(t, order.ProcessShippingStatusUpdate("Shipped", "TRACK123"))
	assert.Equal(t, StatusShipped, order.Status())

	require.NoError(t, order.MarkAsDelivered())
	assert.Equal(t, StatusDelivered, order.Status())

	// un pedido entregado ya no se puede cancelar
	err := order.Cancel("me lo he pensado mejor")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrder_TransitionGuards(t *testing.T) {
	tests := []struct {
		name string
		op   func(*Order) error
	}{
		{name: "MarkPaymentPending requiere Placed", op: (*Order).MarkPaymentPending},
		{name: "MarkPaymentApproved requiere PaymentPending", op: (*Order).MarkPaymentApproved},
		{name: "StartProcessing requiere PaymentApproved", op: (*Order).StartProcessing},
		{name: "MarkAsDelivered requiere Shipped", op: (*Order).MarkAsDelivered},
		{name: "MarkPaymentFailed requiere PaymentPending", op: func(o *Order) error {
			return o.MarkPaymentFailed("tarjeta rechazada")
		}},
		{name: "ProcessShippingStatusUpdate requiere Processing", op: func(o *Order) error {
			return o.ProcessShippingStatusUpdate("Shipped", "TRACK123")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, _ := NewOrder(NewCustomerID()) // recién creado: Created
			err := tt.op(order)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestOrder_PaymentFailed(t *testing.T) {
	order := placedOrder(t)
	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.MarkPaymentFailed("insufficient funds"))

	assert.Equal(t, StatusPaymentFailed, order.Status())
	assert.Equal(t, "insufficient funds", order.PaymentFailureReason())
}

func TestOrder_PaymentFailedDefaultReason(t *testing.T) {
	order := placedOrder(t)
	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.MarkPaymentFailed(""))

	// la invariante exige motivo no vacío; sin motivo se registra Unknown
	assert.Equal(t, "Unknown", order.PaymentFailureReason())
}

func TestOrder_Cancel(t *testing.T) {
	order := placedOrder(t)
	require.NoError(t, order.MarkPaymentPending())
	require.NoError(t, order.Cancel("cliente arrepentido"))
	assert.Equal(t, StatusCancelled, order.Status())
}

func TestOrder_TotalAmount(t *testing.T) {
	order, _ := NewOrder(NewCustomerID())
	assert.True(t, order.TotalAmount().Amount.IsZero())
	assert.Equal(t, DefaultCurrency, order.TotalAmount().Currency)

	require.NoError(t, order.AddItem(NewProductID(), "Café en grano", 2, dkk(t, 100)))
	require.NoError(t, order.AddItem(NewProductID(), "Té verde", 3, dkk(t, 25)))
	assert.True(t, order.TotalAmount().Amount.Equal(decimal.NewFromInt(275)))
}

func TestOrder_RehydrateRoundTrip(t *testing.T) {
	live := placedOrder(t)
	require.NoError(t, live.MarkPaymentPending())
	require.NoError(t, live.MarkPaymentApproved())

	events := live.UncommittedEvents()
	rebuilt, err := Rehydrate(events)
	require.NoError(t, err)

	assert.Equal(t, live.ID(), rebuilt.ID())
	assert.Equal(t, live.CustomerID(), rebuilt.CustomerID())
	assert.Equal(t, live.Status(), rebuilt.Status())
	assert.Equal(t, len(events), rebuilt.Version())
	assert.Empty(t, rebuilt.UncommittedEvents(), "la rehidratación no acumula eventos sin confirmar")

	liveAddr, _ := live.ShippingAddress()
	rebuiltAddr, ok := rebuilt.ShippingAddress()
	require.True(t, ok)
	assert.Equal(t, liveAddr, rebuiltAddr)

	require.Len(t, rebuilt.Items(), len(live.Items()))
	for i, item := range live.Items() {
		assert.Equal(t, item.ProductID(), rebuilt.Items()[i].ProductID())
		assert.Equal(t, item.Quantity(), rebuilt.Items()[i].Quantity())
		assert.True(t, item.UnitPrice().Equal(rebuilt.Items()[i].UnitPrice()))
	}
}

func TestRehydrate_EmptyStream(t *testing.T) {
	_, err := Rehydrate(nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = Rehydrate([]sharedDomain.Event{})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
