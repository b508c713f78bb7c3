package domain

import (
	"time"

	"github.com/google/uuid"
)

// Nombres estables de tipo de evento; son los que viajan al event store,
// al outbox y al broker (tras derivar el topic).
const (
	EventTypeOrderCreated             = "OrderCreatedEvent"
	EventTypeOrderItemAdded           = "OrderItemAddedEvent"
	EventTypeOrderItemQuantityUpdated = "OrderItemQuantityUpdatedEvent"
	EventTypeOrderItemRemoved         = "OrderItemRemovedEvent"
	EventTypeOrderShippingAddressSet  = "OrderShippingAddressSetEvent"
	EventTypeOrderValidated           = "OrderValidatedEvent"
	EventTypeOrderPaymentPending      = "OrderPaymentPendingEvent"
	EventTypeOrderPaymentApproved     = "OrderPaymentApprovedEvent"
	EventTypeOrderPaymentFailed       = "OrderPaymentFailedEvent"
	EventTypeOrderProcessingStarted   = "OrderProcessingStartedEvent"
	EventTypeOrderShipped             = "OrderShippedEvent"
	EventTypeOrderDelivered           = "OrderDeliveredEvent"
	EventTypeOrderCancelled           = "OrderCancelledEvent"
)

// BaseEvent aporta identidad y timestamp a todos los eventos de dominio.
// Ambos se generan en construcción y son inmutables.
type BaseEvent struct {
	ID        uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

func newBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

type OrderCreatedEvent struct {
	BaseEvent
	OrderID     OrderID    `json:"orderId"`
	CustomerID  CustomerID `json:"customerId"`
	CreatedDate time.Time  `json:"createdDate"`
}

func (e *OrderCreatedEvent) EventType() string { return EventTypeOrderCreated }

type OrderItemAddedEvent struct {
	BaseEvent
	OrderID     OrderID   `json:"orderId"`
	ProductID   ProductID `json:"productId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	UnitPrice   Money     `json:"unitPrice"`
}

func (e *OrderItemAddedEvent) EventType() string { return EventTypeOrderItemAdded }

type OrderItemQuantityUpdatedEvent struct {
	BaseEvent
	OrderID     OrderID   `json:"orderId"`
	ProductID   ProductID `json:"productId"`
	NewQuantity int       `json:"newQuantity"`
}

func (e *OrderItemQuantityUpdatedEvent) EventType() string { return EventTypeOrderItemQuantityUpdated }

type OrderItemRemovedEvent struct {
	BaseEvent
	OrderID   OrderID   `json:"orderId"`
	ProductID ProductID `json:"productId"`
}

func (e *OrderItemRemovedEvent) EventType() string { return EventTypeOrderItemRemoved }

type OrderShippingAddressSetEvent struct {
	BaseEvent
	OrderID OrderID `json:"orderId"`
	Address Address `json:"address"`
}

func (e *OrderShippingAddressSetEvent) EventType() string { return EventTypeOrderShippingAddressSet }

type OrderValidatedEvent struct {
	BaseEvent
	OrderID     OrderID   `json:"orderId"`
	ValidatedAt time.Time `json:"validatedAt"`
}

func (e *OrderValidatedEvent) EventType() string { return EventTypeOrderValidated }

type OrderPaymentPendingEvent struct {
	BaseEvent
	OrderID OrderID `json:"orderId"`
}

func (e *OrderPaymentPendingEvent) EventType() string { return EventTypeOrderPaymentPending }

type OrderPaymentApprovedEvent struct {
	BaseEvent
	OrderID OrderID `json:"orderId"`
}

func (e *OrderPaymentApprovedEvent) EventType() string { return EventTypeOrderPaymentApproved }

type OrderPaymentFailedEvent struct {
	BaseEvent
	OrderID OrderID `json:"orderId"`
	Reason  string  `json:"reason"`
}

func (e *OrderPaymentFailedEvent) EventType() string { return EventTypeOrderPaymentFailed }

type OrderProcessingStartedEvent struct {
	BaseEvent
	OrderID OrderID `json:"orderId"`
}

func (e *OrderProcessingStartedEvent) EventType() string { return EventTypeOrderProcessingStarted }

type OrderShippedEvent struct {
	BaseEvent
	OrderID        OrderID `json:"orderId"`
	TrackingNumber string  `json:"trackingNumber"`
}

func (e *OrderShippedEvent) EventType() string { return EventTypeOrderShipped }

type OrderDeliveredEvent struct {
	BaseEvent
	OrderID OrderID `json:"orderId"`
}

func (e *OrderDeliveredEvent) EventType() string { return EventTypeOrderDelivered }

type OrderCancelledEvent struct {
	BaseEvent
	OrderID OrderID `json:"orderId"`
	Reason  string  `json:"reason"`
}

func (e *OrderCancelledEvent) EventType() string { return EventTypeOrderCancelled }
