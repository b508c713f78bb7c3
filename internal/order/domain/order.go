package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	sharedDomain "github.com/davicafu/orderflow/shared/domain"
)

// OrderStatus es el estado del pedido dentro de su máquina de estados:
//
//	Created → Placed → PaymentPending → PaymentApproved → Processing → Shipped → Delivered
//
// con PaymentFailed alcanzable desde PaymentPending y Cancelled desde
// cualquier estado salvo Shipped/Delivered.
type OrderStatus string

const (
	StatusCreated         OrderStatus = "Created"
	StatusPlaced          OrderStatus = "Placed"
	StatusPaymentPending  OrderStatus = "PaymentPending"
	StatusPaymentApproved OrderStatus = "PaymentApproved"
	StatusPaymentFailed   OrderStatus = "PaymentFailed"
	StatusProcessing      OrderStatus = "Processing"
	StatusShipped         OrderStatus = "Shipped"
	StatusDelivered       OrderStatus = "Delivered"
	StatusCancelled       OrderStatus = "Cancelled"
)

// MaxDistinctProducts limita las líneas distintas por pedido.
const MaxDistinctProducts = 200

// DefaultCurrency de los pedidos; el mínimo de 50 se expresa en ella.
const DefaultCurrency = "DKK"

// MinimumOrderTotal es el importe mínimo para poder colocar un pedido.
var MinimumOrderTotal = decimal.NewFromInt(50)

// Order es el aggregate root event-sourced: todo cambio de estado pasa por
// un evento de dominio y las invariantes se comprueban tras cada aplicación.
// Los OrderItems son de su propiedad exclusiva.
type Order struct {
	sharedDomain.AggregateBase

	id                   OrderID
	customerID           CustomerID
	status               OrderStatus
	items                []*OrderItem
	shippingAddress      *Address
	paymentFailureReason string
	orderDate            time.Time
	lastModified         time.Time
}

// NewOrder crea un pedido para un cliente; entra en Created atómicamente
// con la construcción (evento OrderCreated).
func NewOrder(customerID CustomerID) (*Order, error) {
	if customerID.IsZero() {
		return nil, ErrEmptyCustomerID
	}

	order := newEmptyOrder()
	event := &OrderCreatedEvent{
		BaseEvent:   newBaseEvent(),
		OrderID:     NewOrderID(),
		CustomerID:  customerID,
		CreatedDate: time.Now().UTC(),
	}

	if err := order.Raise(order, event); err != nil {
		return nil, err
	}
	return order, nil
}

// Rehydrate reconstruye un Order reproduciendo su histórico completo de
// eventos en orden de stream. No valida invariantes ni acumula eventos sin
// confirmar: ya se validaron cuando cada evento se persistió.
func Rehydrate(events []sharedDomain.Event) (*Order, error) {
	if len(events) == 0 {
		return nil, ErrOrderNotFound
	}

	order := newEmptyOrder()
	order.Replay(order, events)
	return order, nil
}

func newEmptyOrder() *Order {
	return &Order{items: make([]*OrderItem, 0)}
}

// ---------- Accessors ----------

func (o *Order) ID() OrderID                  { return o.id }
func (o *Order) CustomerID() CustomerID       { return o.customerID }
func (o *Order) Status() OrderStatus          { return o.status }
func (o *Order) OrderDate() time.Time         { return o.orderDate }
func (o *Order) LastModified() time.Time      { return o.lastModified }
func (o *Order) PaymentFailureReason() string { return o.paymentFailureReason }

// ShippingAddress devuelve (dirección, true) si está fijada.
func (o *Order) ShippingAddress() (Address, bool) {
	if o.shippingAddress == nil {
		return Address{}, false
	}
	return *o.shippingAddress, true
}

// Items devuelve las líneas en orden de inserción; los punteros son de solo
// lectura para el exterior (los campos son privados del paquete).
func (o *Order) Items() []*OrderItem {
	out := make([]*OrderItem, len(o.items))
	copy(out, o.items)
	return out
}

// TotalAmount es una propiedad calculada, nunca almacenada: suma de
// unitPrice × quantity por línea. Sin líneas devuelve cero en DKK.
func (o *Order) TotalAmount() Money {
	if len(o.items) == 0 {
		return ZeroMoney(DefaultCurrency)
	}

	total := o.items[0].TotalPrice()
	for _, item := range o.items[1:] {
		sum, err := total.Add(item.TotalPrice())
		if err != nil {
			// inalcanzable: AddItem rechaza monedas distintas a la de la
			// primera línea, así que aquí todas comparten moneda
			continue
		}
		total = sum
	}
	return total
}

func (o *Order) PartitionKey() string { return o.id.String() }

// ---------- Comandos de dominio ----------

// AddItem añade unidades de un producto. Si la línea ya existe se acumula
// la cantidad (tope MaxQuantityPerProduct); si es nueva se captura el
// precio unitario en este momento y no se vuelve a consultar.
func (o *Order) AddItem(productID ProductID, productName string, quantity int, unitPrice Money) error {
	if productID.IsZero() {
		return ErrEmptyProductID
	}
	if quantity <= 0 {
		return ErrNegativeQuantity
	}

	if existing := o.findItem(productID); existing != nil {
		newQuantity := existing.Quantity() + quantity
		if newQuantity > MaxQuantityPerProduct {
			return ErrQuantityLimit
		}
		return o.Raise(o, &OrderItemQuantityUpdatedEvent{
			BaseEvent:   newBaseEvent(),
			OrderID:     o.id,
			ProductID:   productID,
			NewQuantity: newQuantity,
		})
	}

	if quantity > MaxQuantityPerProduct {
		return ErrQuantityLimit
	}
	if len(o.items) >= MaxDistinctProducts {
		return ErrTooManyProducts
	}
	if productName == "" {
		return ErrEmptyProductName
	}
	if unitPrice.Currency == "" {
		return ErrInvalidItemPrice
	}
	// La primera línea fija la moneda del pedido; mezclar monedas dejaría el
	// total (y con él el mínimo de ValidateOrder) sin sentido.
	if len(o.items) > 0 {
		if current := o.items[0].UnitPrice().Currency; unitPrice.Currency != current {
			return fmt.Errorf("%w: order lines are in %s, got %s",
				ErrCurrencyMismatch, current, unitPrice.Currency)
		}
	}

	return o.Raise(o, &OrderItemAddedEvent{
		BaseEvent:   newBaseEvent(),
		OrderID:     o.id,
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	})
}

// RemoveItem quita una línea completa. Quitar un producto que no está en el
// pedido no es un error: simplemente no hay evento.
func (o *Order) RemoveItem(productID ProductID) error {
	if err := o.ensureModifiable("remove items"); err != nil {
		return err
	}

	if o.findItem(productID) == nil {
		return nil
	}

	return o.Raise(o, &OrderItemRemovedEvent{
		BaseEvent: newBaseEvent(),
		OrderID:   o.id,
		ProductID: productID,
	})
}

func (o *Order) SetShippingAddress(address Address) error {
	if address.IsZero() {
		return ErrEmptyStreet
	}

	return o.Raise(o, &OrderShippingAddressSetEvent{
		BaseEvent: newBaseEvent(),
		OrderID:   o.id,
		Address:   address,
	})
}

// ValidateOrder comprueba que el pedido está completo y lo coloca (Placed).
// Cada condición incumplida falla con un error que identifica qué falta.
func (o *Order) ValidateOrder() error {
	if err := o.ensureModifiable("validate"); err != nil {
		return err
	}
	if len(o.items) == 0 {
		return ErrNoItems
	}
	if o.shippingAddress == nil {
		return ErrNoShippingAddress
	}
	if total := o.TotalAmount(); total.Amount.LessThan(MinimumOrderTotal) {
		return fmt.Errorf("%w: total is %s, minimum is %s %s",
			ErrBelowMinimumTotal, total, MinimumOrderTotal, total.Currency)
	}

	return o.Raise(o, &OrderValidatedEvent{
		BaseEvent:   newBaseEvent(),
		OrderID:     o.id,
		ValidatedAt: time.Now().UTC(),
	})
}

func (o *Order) MarkPaymentPending() error {
	if o.status != StatusPlaced {
		return fmt.Errorf("%w: order must be placed before processing payment (status %s)",
			ErrInvalidTransition, o.status)
	}

	return o.Raise(o, &OrderPaymentPendingEvent{BaseEvent: newBaseEvent(), OrderID: o.id})
}

func (o *Order) MarkPaymentApproved() error {
	if o.status != StatusPaymentPending {
		return fmt.Errorf("%w: cannot approve payment for an order that is not payment pending (status %s)",
			ErrInvalidTransition, o.status)
	}

	return o.Raise(o, &OrderPaymentApprovedEvent{BaseEvent: newBaseEvent(), OrderID: o.id})
}

// MarkPaymentFailed registra el fallo de pago con su motivo.
func (o *Order) MarkPaymentFailed(reason string) error {
	if o.status != StatusPaymentPending {
		return fmt.Errorf("%w: can only mark payment as failed for orders with pending payment (status %s)",
			ErrInvalidTransition, o.status)
	}
	if reason == "" {
		reason = "Unknown"
	}

	return o.Raise(o, &OrderPaymentFailedEvent{BaseEvent: newBaseEvent(), OrderID: o.id, Reason: reason})
}

func (o *Order) StartProcessing() error {
	if o.status != StatusPaymentApproved {
		return fmt.Errorf("%w: order must have payment approved before processing (status %s)",
			ErrInvalidTransition, o.status)
	}

	return o.Raise(o, &OrderProcessingStartedEvent{BaseEvent: newBaseEvent(), OrderID: o.id})
}

// ProcessShippingStatusUpdate marca el pedido como enviado con su tracking.
func (o *Order) ProcessShippingStatusUpdate(shippingStatus, trackingNumber string) error {
	if o.status != StatusProcessing {
		return fmt.Errorf("%w: order must be in processing status before shipping (status %s)",
			ErrInvalidTransition, o.status)
	}

	return o.Raise(o, &OrderShippedEvent{
		BaseEvent:      newBaseEvent(),
		OrderID:        o.id,
		TrackingNumber: trackingNumber,
	})
}

func (o *Order) MarkAsDelivered() error {
	if o.status != StatusShipped {
		return fmt.Errorf("%w: order must be shipped before it can be delivered (status %s)",
			ErrInvalidTransition, o.status)
	}

	return o.Raise(o, &OrderDeliveredEvent{BaseEvent: newBaseEvent(), OrderID: o.id})
}

// Cancel es terminal y posible desde cualquier estado salvo Shipped/Delivered.
// La cancelación es un estado, no un borrado: el stream del pedido permanece.
func (o *Order) Cancel(reason string) error {
	if o.status == StatusShipped || o.status == StatusDelivered {
		return fmt.Errorf("%w: cannot cancel an order that has been shipped or delivered (status %s)",
			ErrInvalidTransition, o.status)
	}

	return o.Raise(o, &OrderCancelledEvent{BaseEvent: newBaseEvent(), OrderID: o.id, Reason: reason})
}

// ---------- Protocolo del aggregate ----------

// When es el mapeo total evento -> mutación de estado. Los tipos de evento
// no reconocidos se ignoran (tolerancia hacia delante para evolución de
// esquema); el registro de decodificación ya rechaza tipos desconocidos en
// la frontera de deserialización.
func (o *Order) When(event sharedDomain.Event) {
	switch e := event.(type) {
	case *OrderCreatedEvent:
		o.id = e.OrderID
		o.customerID = e.CustomerID
		o.status = StatusCreated
		o.orderDate = e.CreatedDate
		o.lastModified = e.CreatedDate

	case *OrderItemAddedEvent:
		item, err := newOrderItem(e.ProductID, e.ProductName, e.Quantity, e.UnitPrice)
		if err == nil {
			o.items = append(o.items, item)
		}
		o.lastModified = e.OccurredAt()

	case *OrderItemQuantityUpdatedEvent:
		if item := o.findItem(e.ProductID); item != nil {
			_ = item.updateQuantity(e.NewQuantity)
			o.lastModified = e.OccurredAt()
		}

	case *OrderItemRemovedEvent:
		for i, item := range o.items {
			if item.ProductID() == e.ProductID {
				o.items = append(o.items[:i], o.items[i+1:]...)
				o.lastModified = e.OccurredAt()
				break
			}
		}

	case *OrderShippingAddressSetEvent:
		address := e.Address
		o.shippingAddress = &address
		o.lastModified = e.OccurredAt()

	case *OrderValidatedEvent:
		o.status = StatusPlaced
		o.lastModified = e.ValidatedAt

	case *OrderPaymentPendingEvent:
		o.status = StatusPaymentPending
		o.lastModified = e.OccurredAt()

	case *OrderPaymentApprovedEvent:
		o.status = StatusPaymentApproved
		o.lastModified = e.OccurredAt()

	case *OrderPaymentFailedEvent:
		o.status = StatusPaymentFailed
		o.paymentFailureReason = e.Reason
		o.lastModified = e.OccurredAt()

	case *OrderProcessingStartedEvent:
		o.status = StatusProcessing
		o.lastModified = e.OccurredAt()

	case *OrderShippedEvent:
		o.status = StatusShipped
		o.lastModified = e.OccurredAt()

	case *OrderDeliveredEvent:
		o.status = StatusDelivered
		o.lastModified = e.OccurredAt()

	case *OrderCancelledEvent:
		o.status = StatusCancelled
		o.lastModified = e.OccurredAt()
	}
}

// EnsureValidState comprueba las invariantes del aggregate tras cada
// aplicación de evento. Una violación es fatal para la operación en curso.
func (o *Order) EnsureValidState() error {
	valid := !o.id.IsZero() && !o.customerID.IsZero()

	switch o.status {
	case StatusPlaced:
		valid = valid && len(o.items) > 0 && o.shippingAddress != nil &&
			!o.TotalAmount().Amount.LessThan(MinimumOrderTotal)
	case StatusPaymentFailed:
		valid = valid && o.paymentFailureReason != ""
	case StatusShipped, StatusDelivered:
		valid = valid && len(o.items) > 0 && o.shippingAddress != nil
	}

	if !valid {
		return fmt.Errorf("%w: order %s (status %s)", ErrInvalidOrderState, o.id, o.status)
	}
	return nil
}

func (o *Order) findItem(productID ProductID) *OrderItem {
	for _, item := range o.items {
		if item.ProductID() == productID {
			return item
		}
	}
	return nil
}

func (o *Order) ensureModifiable(operation string) error {
	if o.status != StatusCreated {
		return fmt.Errorf("%w: can only %s an order in Created status (status %s)",
			ErrInvalidTransition, operation, o.status)
	}
	return nil
}
