package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/orderflow/internal/order/infra/outbound/projections"
)

func setupRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupRedis(t)

	doc := projections.OrderSummaryDoc{
		OrderID: "order-1",
		Status:  "Placed",
	}
	key := projections.SummaryKey(doc.OrderID)
	require.NoError(t, cache.Set(ctx, key, &doc, 30))

	var got projections.OrderSummaryDoc
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc.OrderID, got.OrderID)
	assert.Equal(t, doc.Status, got.Status)
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _ := setupRedis(t)

	var got projections.OrderSummaryDoc
	found, err := cache.Get(context.Background(), "orders/missing/summary", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupRedis(t)

	key := projections.SummaryKey("order-1")
	require.NoError(t, cache.Set(ctx, key, &projections.OrderSummaryDoc{OrderID: "order-1"}, 30))

	// miniredis permite avanzar el reloj sin esperar
	mr.FastForward(31 * time.Second)

	var got projections.OrderSummaryDoc
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found, "tras el TTL la clave expira")
}

func TestRedisCache_Delete(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupRedis(t)

	key := projections.SummaryKey("order-1")
	require.NoError(t, cache.Set(ctx, key, &projections.OrderSummaryDoc{OrderID: "order-1"}, 30))
	require.NoError(t, cache.Delete(ctx, key))

	var got projections.OrderSummaryDoc
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache(time.Minute, time.Minute)
	defer cache.Stop()

	doc := projections.OrderDetailsDoc{OrderID: "order-1", Status: "Processing"}
	key := projections.DetailsKey(doc.OrderID)
	require.NoError(t, cache.Set(ctx, key, &doc, 0))

	var got projections.OrderDetailsDoc
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Processing", got.Status)

	require.NoError(t, cache.Delete(ctx, key))
	found, err = cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}
