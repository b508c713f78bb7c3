package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/davicafu/orderflow/internal/order/domain"
	"github.com/davicafu/orderflow/internal/order/infra/outbound/projections"
	sharedCache "github.com/davicafu/orderflow/shared/platform/cache"
	sharedPersistence "github.com/davicafu/orderflow/shared/platform/persistence"
)

// cacheTTLSecs es el TTL de los read models en caché. Corto a propósito:
// las proyecciones son eventualmente consistentes y la caché añade otro
// escalón de staleness encima.
const cacheTTLSecs = 30

// OrderQueries sirve los read models proyectados, con caché read-through
// opcional por delante del almacén de documentos.
type OrderQueries struct {
	docs  sharedPersistence.DocumentStore
	cache sharedCache.Cache
	log   *zap.Logger
}

func NewOrderQueries(docs sharedPersistence.DocumentStore, cache sharedCache.Cache, log *zap.Logger) *OrderQueries {
	return &OrderQueries{docs: docs, cache: cache, log: log}
}

// GetSummary devuelve el resumen proyectado del pedido.
func (q *OrderQueries) GetSummary(ctx context.Context, orderID domain.OrderID) (*projections.OrderSummaryDoc, error) {
	key := projections.SummaryKey(orderID.String())

	if q.cache != nil {
		var cached projections.OrderSummaryDoc
		if ok, _ := q.cache.Get(ctx, key, &cached); ok {
			return &cached, nil
		}
	}

	var doc projections.OrderSummaryDoc
	found, err := q.docs.Load(ctx, key, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrOrderNotFound
	}

	sharedCache.AsyncCacheSet(ctx, q.cache, key, &doc, cacheTTLSecs, q.log)
	return &doc, nil
}

// GetDetails devuelve el detalle proyectado del pedido.
func (q *OrderQueries) GetDetails(ctx context.Context, orderID domain.OrderID) (*projections.OrderDetailsDoc, error) {
	key := projections.DetailsKey(orderID.String())

	if q.cache != nil {
		var cached projections.OrderDetailsDoc
		if ok, _ := q.cache.Get(ctx, key, &cached); ok {
			return &cached, nil
		}
	}

	var doc projections.OrderDetailsDoc
	found, err := q.docs.Load(ctx, key, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrOrderNotFound
	}

	sharedCache.AsyncCacheSet(ctx, q.cache, key, &doc, cacheTTLSecs, q.log)
	return &doc, nil
}

// ListByCustomer devuelve los resúmenes de pedidos de un cliente. No pasa
// por caché: la consulta por campo no tiene una clave estable que invalidar.
// Summary y details comparten almacén y ambos serializan customerId, así que
// hay que quedarse solo con los documentos de tipo summary.
func (q *OrderQueries) ListByCustomer(ctx context.Context, customerID domain.CustomerID) ([]projections.OrderSummaryDoc, error) {
	var docs []projections.OrderSummaryDoc
	if err := q.docs.FindByField(ctx, "customerId", customerID.String(), &docs); err != nil {
		return nil, err
	}

	summaries := docs[:0]
	for _, doc := range docs {
		if doc.Kind == projections.KindSummary {
			summaries = append(summaries, doc)
		}
	}
	return summaries, nil
}
