package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/orderflow/internal/order/application"
	"github.com/davicafu/orderflow/internal/order/domain"
	infraEvents "github.com/davicafu/orderflow/internal/shared/infra/events"
	sharedEvents "github.com/davicafu/orderflow/shared/events"
	sharedUtils "github.com/davicafu/orderflow/shared/utils"
)

// Tipos de evento de integración que emiten los servicios externos de pago y
// envíos. Viajan en el sobre IntegrationEvent por los topics derivados de su
// nombre (payment-approved, payment-failed, ...).
const (
	PaymentApprovedType       = "PaymentApprovedEvent"
	PaymentFailedType         = "PaymentFailedEvent"
	ShippingStatusUpdatedType = "ShippingStatusUpdatedEvent"
	OrderDeliveredType        = "OrderDeliveredEvent"
)

// Payloads externos. Solo se declaran los campos que este consumidor usa.

type PaymentApproved struct {
	OrderID domain.OrderID `json:"orderId"`
}

type PaymentFailed struct {
	OrderID domain.OrderID `json:"orderId"`
	Reason  string         `json:"reason"`
}

type ShippingStatusUpdated struct {
	OrderID        domain.OrderID `json:"orderId"`
	Status         string         `json:"status"`
	TrackingNumber string         `json:"trackingNumber"`
}

type OrderDelivered struct {
	OrderID domain.OrderID `json:"orderId"`
}

// OrderTransitions es lo que el consumidor necesita del servicio de pedidos.
type OrderTransitions interface {
	ApprovePayment(ctx context.Context, orderID domain.OrderID) (*domain.Order, error)
	FailPayment(ctx context.Context, orderID domain.OrderID, reason string) (*domain.Order, error)
	UpdateShippingStatus(ctx context.Context, orderID domain.OrderID, status, trackingNumber string) (*domain.Order, error)
	MarkDelivered(ctx context.Context, orderID domain.OrderID) (*domain.Order, error)
}

var _ OrderTransitions = (*application.OrderService)(nil)

// OrderConsumer traduce los eventos de integración entrantes en transiciones
// del aggregate Order.
type OrderConsumer struct {
	service OrderTransitions
	log     *zap.Logger
}

func NewOrderConsumer(service OrderTransitions, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{
		service: service,
		log:     logger,
	}
}

func (c *OrderConsumer) HandleMessage(ctx context.Context, topic string, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}

	switch base.Type {
	case PaymentApprovedType:
		sharedUtils.UnmarshalAndHandle[PaymentApproved](c.log, base.Data, func(evt PaymentApproved) {
			c.withContext(ctx, evt.OrderID, func(ctxOrder context.Context) error {
				_, err := c.service.ApprovePayment(ctxOrder, evt.OrderID)
				return err
			}, "Payment approved via event", evt)
		})

	case PaymentFailedType:
		sharedUtils.UnmarshalAndHandle[PaymentFailed](c.log, base.Data, func(evt PaymentFailed) {
			c.withContext(ctx, evt.OrderID, func(ctxOrder context.Context) error {
				_, err := c.service.FailPayment(ctxOrder, evt.OrderID, evt.Reason)
				return err
			}, "Payment failed via event", evt)
		})

	case ShippingStatusUpdatedType:
		sharedUtils.UnmarshalAndHandle[ShippingStatusUpdated](c.log, base.Data, func(evt ShippingStatusUpdated) {
			c.withContext(ctx, evt.OrderID, func(ctxOrder context.Context) error {
				_, err := c.service.UpdateShippingStatus(ctxOrder, evt.OrderID, evt.Status, evt.TrackingNumber)
				return err
			}, "Shipping status updated via event", evt)
		})

	case OrderDeliveredType:
		sharedUtils.UnmarshalAndHandle[OrderDelivered](c.log, base.Data, func(evt OrderDelivered) {
			c.withContext(ctx, evt.OrderID, func(ctxOrder context.Context) error {
				_, err := c.service.MarkDelivered(ctxOrder, evt.OrderID)
				return err
			}, "Order delivered via event", evt)
		})

	default:
		c.log.Warn("Unknown integration event type",
			zap.String("type", base.Type),
			zap.String("topic", topic),
		)
	}
}

// withContext ejecuta la transición con un contexto acotado. Una redelivery
// del broker llega como transición inválida (el pedido ya avanzó): se trata
// como procesada, no como error.
func (c *OrderConsumer) withContext(ctx context.Context, orderID domain.OrderID, action func(ctx context.Context) error, successMsg string, evt interface{}) {
	ctxOrder, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := action(ctxOrder); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			c.log.Info("Evento de integración duplicado o fuera de orden ignorado",
				zap.String("order_id", orderID.String()),
				zap.Any("event", evt),
			)
			return
		}

		c.log.Warn("Failed to process integration event",
			zap.String("order_id", orderID.String()),
			zap.Any("event", evt),
			zap.Error(err),
		)
		return
	}

	c.log.Info(successMsg,
		zap.String("order_id", orderID.String()),
		zap.Any("event", evt),
	)
}

// BackgroundConsumerChan conecta el consumidor a un canal del bus en memoria
// para despliegues locales sin Kafka.
func BackgroundConsumerChan(ctx context.Context, ch <-chan infraEvents.BusMessage, consumer *OrderConsumer) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				consumer.log.Info("OrderConsumer stopped")
				return
			case msg := <-ch:
				consumer.HandleMessage(ctx, msg.Topic, msg.Key, msg.Payload)
			}
		}
	}()
}
