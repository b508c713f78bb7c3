package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/orderflow/internal/order/domain"
)

// maxConcurrencyRetries limita los reintentos recarga-y-repite ante un
// conflicto de versión optimista. Un conflicto persistente tras los
// reintentos se devuelve al llamante tal cual.
const maxConcurrencyRetries = 3

// OrderService define los casos de uso de comando sobre el aggregate Order:
// cada operación carga el pedido, aplica la mutación de dominio y lo guarda.
// Los conflictos de concurrencia se reintentan recargando el estado fresco;
// las violaciones de reglas de negocio NO se reintentan, se devuelven.
type OrderService struct {
	repo domain.OrderRepository
	log  *zap.Logger
}

func NewOrderService(repo domain.OrderRepository, log *zap.Logger) *OrderService {
	return &OrderService{repo: repo, log: log}
}

// CreateOrder crea un pedido nuevo para el cliente.
func (s *OrderService) CreateOrder(ctx context.Context, customerID domain.CustomerID) (*domain.Order, error) {
	order, err := domain.NewOrder(customerID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info("🆕 Pedido creado",
		zap.String("order_id", order.ID().String()),
		zap.String("customer_id", customerID.String()),
	)
	return order, nil
}

func (s *OrderService) AddItem(ctx context.Context, orderID domain.OrderID, productID domain.ProductID, productName string, quantity int, unitPrice domain.Money) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.AddItem(productID, productName, quantity, unitPrice)
	})
}

func (s *OrderService) RemoveItem(ctx context.Context, orderID domain.OrderID, productID domain.ProductID) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.RemoveItem(productID)
	})
}

func (s *OrderService) SetShippingAddress(ctx context.Context, orderID domain.OrderID, address domain.Address) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.SetShippingAddress(address)
	})
}

// ValidateOrder coloca el pedido (Created -> Placed) y lo deja pendiente de
// pago: el evento OrderValidated publicado por el outbox dispara el flujo de
// pago aguas abajo.
func (s *OrderService) ValidateOrder(ctx context.Context, orderID domain.OrderID) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.ValidateOrder()
	})
}

func (s *OrderService) RequestPayment(ctx context.Context, orderID domain.OrderID) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.MarkPaymentPending()
	})
}

func (s *OrderService) ApprovePayment(ctx context.Context, orderID domain.OrderID) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.MarkPaymentApproved()
	})
}

func (s *OrderService) FailPayment(ctx context.Context, orderID domain.OrderID, reason string) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.MarkPaymentFailed(reason)
	})
}

func (s *OrderService) StartProcessing(ctx context.Context, orderID domain.OrderID) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.StartProcessing()
	})
}

func (s *OrderService) UpdateShippingStatus(ctx context.Context, orderID domain.OrderID, status, trackingNumber string) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.ProcessShippingStatusUpdate(status, trackingNumber)
	})
}

func (s *OrderService) MarkDelivered(ctx context.Context, orderID domain.OrderID) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.MarkAsDelivered()
	})
}

func (s *OrderService) CancelOrder(ctx context.Context, orderID domain.OrderID, reason string) (*domain.Order, error) {
	return s.execute(ctx, orderID, func(order *domain.Order) error {
		return order.Cancel(reason)
	})
}

// GetOrder rehidrata el pedido desde su stream de eventos.
func (s *OrderService) GetOrder(ctx context.Context, orderID domain.OrderID) (*domain.Order, error) {
	return s.repo.Load(ctx, orderID)
}

// execute es el ciclo cargar-mutar-guardar con reintento ante conflicto de
// versión. El aggregate en memoria se descarta en cada reintento: la
// recarga garantiza que la mutación se decide sobre el estado actual.
func (s *OrderService) execute(ctx context.Context, orderID domain.OrderID, mutate func(*domain.Order) error) (*domain.Order, error) {
	var lastErr error

	for attempt := 0; attempt < maxConcurrencyRetries; attempt++ {
		order, err := s.repo.Load(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if err := mutate(order); err != nil {
			// regla de negocio violada: reintentar no la corrige
			return nil, err
		}

		err = s.repo.Save(ctx, order)
		if err == nil {
			return order, nil
		}
		if !domain.IsConcurrencyError(err) {
			return nil, err
		}

		lastErr = err
		s.log.Warn("⚠️ Conflicto de concurrencia, recargando pedido",
			zap.String("order_id", orderID.String()),
			zap.Int("attempt", attempt+1),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}

	return nil, lastErr
}
