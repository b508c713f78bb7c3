package projections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/orderflow/internal/order/domain"
	sharedDomain "github.com/davicafu/orderflow/shared/domain"
	sharedPersistence "github.com/davicafu/orderflow/shared/platform/persistence"
)

// DetailsKey es la clave del documento de detalle de un pedido.
func DetailsKey(orderID string) string { return "orders/" + orderID + "/details" }

type DetailsItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
}

// OrderDetailsDoc es el read model completo de un pedido: líneas, dirección
// y los datos de pago/envío. Mismo esquema de idempotencia por LastVersion
// que el resumen.
type OrderDetailsDoc struct {
	Kind                 string          `json:"kind"`
	OrderID              string          `json:"orderId"`
	CustomerID           string          `json:"customerId"`
	Status               string          `json:"status"`
	Items                []DetailsItem   `json:"items"`
	ShippingAddress      *domain.Address `json:"shippingAddress,omitempty"`
	PaymentFailureReason string          `json:"paymentFailureReason,omitempty"`
	TrackingNumber       string          `json:"trackingNumber,omitempty"`
	CancelReason         string          `json:"cancelReason,omitempty"`
	OrderDate            time.Time       `json:"orderDate"`
	LastModified         time.Time       `json:"lastModified"`
	LastVersion          int             `json:"lastVersion"`
}

// DetailsProjector mantiene OrderDetailsDoc a partir del feed de eventos.
type DetailsProjector struct {
	docs sharedPersistence.DocumentStore
	log  *zap.Logger
}

func NewDetailsProjector(docs sharedPersistence.DocumentStore, log *zap.Logger) *DetailsProjector {
	return &DetailsProjector{docs: docs, log: log}
}

func (p *DetailsProjector) Handle(ctx context.Context, record sharedDomain.RecordedEvent) error {
	event, err := domain.DecodeEvent(record.EventType, record.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEventType) {
			return nil
		}
		return err
	}

	orderID := orderIDFromStream(record.StreamName)
	key := DetailsKey(orderID)

	var doc OrderDetailsDoc
	found, err := p.docs.Load(ctx, key, &doc)
	if err != nil {
		return fmt.Errorf("failed to load details %s: %w", key, err)
	}
	if found && record.Version <= doc.LastVersion {
		return nil
	}
	if !found {
		doc = OrderDetailsDoc{Kind: KindDetails, OrderID: orderID}
	}

	p.apply(&doc, event)
	doc.LastVersion = record.Version
	doc.LastModified = event.OccurredAt()

	return p.docs.Store(ctx, key, &doc)
}

func (p *DetailsProjector) apply(doc *OrderDetailsDoc, event sharedDomain.Event) {
	switch e := event.(type) {
	case *domain.OrderCreatedEvent:
		doc.OrderID = e.OrderID.String()
		doc.CustomerID = e.CustomerID.String()
		doc.Status = string(domain.StatusCreated)
		doc.OrderDate = e.CreatedDate

	case *domain.OrderItemAddedEvent:
		doc.Items = append(doc.Items, DetailsItem{
			ProductID:   e.ProductID.String(),
			ProductName: e.ProductName,
			Quantity:    e.Quantity,
			UnitPrice:   e.UnitPrice.Amount,
			Currency:    e.UnitPrice.Currency,
		})

	case *domain.OrderItemQuantityUpdatedEvent:
		for i := range doc.Items {
			if doc.Items[i].ProductID == e.ProductID.String() {
				doc.Items[i].Quantity = e.NewQuantity
				break
			}
		}

	case *domain.OrderItemRemovedEvent:
		for i := range doc.Items {
			if doc.Items[i].ProductID == e.ProductID.String() {
				doc.Items = append(doc.Items[:i], doc.Items[i+1:]...)
				break
			}
		}

	case *domain.OrderShippingAddressSetEvent:
		address := e.Address
		doc.ShippingAddress = &address

	case *domain.OrderValidatedEvent:
		doc.Status = string(domain.StatusPlaced)

	case *domain.OrderPaymentPendingEvent:
		doc.Status = string(domain.StatusPaymentPending)

	case *domain.OrderPaymentApprovedEvent:
		doc.Status = string(domain.StatusPaymentApproved)

	case *domain.OrderPaymentFailedEvent:
		doc.Status = string(domain.StatusPaymentFailed)
		doc.PaymentFailureReason = e.Reason

	case *domain.OrderProcessingStartedEvent:
		doc.Status = string(domain.StatusProcessing)

	case *domain.OrderShippedEvent:
		doc.Status = string(domain.StatusShipped)
		doc.TrackingNumber = e.TrackingNumber

	case *domain.OrderDeliveredEvent:
		doc.Status = string(domain.StatusDelivered)

	case *domain.OrderCancelledEvent:
		doc.Status = string(domain.StatusCancelled)
		doc.CancelReason = e.Reason
	}
}
