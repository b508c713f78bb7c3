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

// SummaryKey es la clave del documento resumen de un pedido.
func SummaryKey(orderID string) string { return "orders/" + orderID + "/summary" }

// Los read models comparten almacén; Kind discrimina el tipo de documento en
// las consultas por campo (ambos serializan customerId).
const (
	KindSummary = "summary"
	KindDetails = "details"
)

// SummaryLine es una línea condensada del pedido; se guarda en el documento
// para poder recomputar el total ante actualizaciones de cantidad.
type SummaryLine struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// OrderSummaryDoc es el read model ligero de un pedido: estado, total y
// número de líneas. LastVersion registra la última versión del stream
// aplicada: los eventos con versión menor o igual se descartan, lo que hace
// la proyección idempotente ante redelivery at-least-once.
type OrderSummaryDoc struct {
	Kind         string                 `json:"kind"`
	OrderID      string                 `json:"orderId"`
	CustomerID   string                 `json:"customerId"`
	Status       string                 `json:"status"`
	TotalAmount  decimal.Decimal        `json:"totalAmount"`
	Currency     string                 `json:"currency"`
	ItemCount    int                    `json:"itemCount"`
	Lines        map[string]SummaryLine `json:"lines"`
	OrderDate    time.Time              `json:"orderDate"`
	LastModified time.Time              `json:"lastModified"`
	LastVersion  int                    `json:"lastVersion"`
}

// SummaryProjector mantiene OrderSummaryDoc a partir del feed de eventos.
type SummaryProjector struct {
	docs sharedPersistence.DocumentStore
	log  *zap.Logger
}

func NewSummaryProjector(docs sharedPersistence.DocumentStore, log *zap.Logger) *SummaryProjector {
	return &SummaryProjector{docs: docs, log: log}
}

func (p *SummaryProjector) Handle(ctx context.Context, record sharedDomain.RecordedEvent) error {
	event, err := domain.DecodeEvent(record.EventType, record.Payload)
	if err != nil {
		// tipos no registrados no son asunto de esta proyección
		if errors.Is(err, domain.ErrUnknownEventType) {
			return nil
		}
		return err
	}

	orderID := orderIDFromStream(record.StreamName)
	key := SummaryKey(orderID)

	var doc OrderSummaryDoc
	found, err := p.docs.Load(ctx, key, &doc)
	if err != nil {
		return fmt.Errorf("failed to load summary %s: %w", key, err)
	}
	if found && record.Version <= doc.LastVersion {
		// evento ya aplicado: redelivery
		return nil
	}
	if !found {
		doc = OrderSummaryDoc{Kind: KindSummary, OrderID: orderID, Lines: make(map[string]SummaryLine)}
	}
	if doc.Lines == nil {
		doc.Lines = make(map[string]SummaryLine)
	}

	p.apply(&doc, event)
	doc.LastVersion = record.Version
	doc.LastModified = event.OccurredAt()

	return p.docs.Store(ctx, key, &doc)
}

func (p *SummaryProjector) apply(doc *OrderSummaryDoc, event sharedDomain.Event) {
	switch e := event.(type) {
	case *domain.OrderCreatedEvent:
		doc.OrderID = e.OrderID.String()
		doc.CustomerID = e.CustomerID.String()
		doc.Status = string(domain.StatusCreated)
		doc.Currency = domain.DefaultCurrency
		doc.OrderDate = e.CreatedDate

	case *domain.OrderItemAddedEvent:
		doc.Lines[e.ProductID.String()] = SummaryLine{
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice.Amount,
		}
		doc.Currency = e.UnitPrice.Currency
		p.recompute(doc)

	case *domain.OrderItemQuantityUpdatedEvent:
		if line, ok := doc.Lines[e.ProductID.String()]; ok {
			line.Quantity = e.NewQuantity
			doc.Lines[e.ProductID.String()] = line
			p.recompute(doc)
		}

	case *domain.OrderItemRemovedEvent:
		delete(doc.Lines, e.ProductID.String())
		p.recompute(doc)

	case *domain.OrderValidatedEvent:
		doc.Status = string(domain.StatusPlaced)

	case *domain.OrderPaymentPendingEvent:
		doc.Status = string(domain.StatusPaymentPending)

	case *domain.OrderPaymentApprovedEvent:
		doc.Status = string(domain.StatusPaymentApproved)

	case *domain.OrderPaymentFailedEvent:
		doc.Status = string(domain.StatusPaymentFailed)

	case *domain.OrderProcessingStartedEvent:
		doc.Status = string(domain.StatusProcessing)

	case *domain.OrderShippedEvent:
		doc.Status = string(domain.StatusShipped)

	case *domain.OrderDeliveredEvent:
		doc.Status = string(domain.StatusDelivered)

	case *domain.OrderCancelledEvent:
		doc.Status = string(domain.StatusCancelled)
	}
}

func (p *SummaryProjector) recompute(doc *OrderSummaryDoc) {
	total := decimal.Zero
	for _, line := range doc.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	doc.TotalAmount = total
	doc.ItemCount = len(doc.Lines)
}

// orderIDFromStream recupera el id del pedido del nombre del stream
// (formato estable "order-<uuid>").
func orderIDFromStream(stream string) string {
	const prefix = "order-"
	if len(stream) > len(prefix) && stream[:len(prefix)] == prefix {
		return stream[len(prefix):]
	}
	return stream
}
