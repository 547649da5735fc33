package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sailsteel/order-desk/internal/orders"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// MarkOnce records key and reports whether this call was the first to do so.
func MarkOnce(ctx context.Context, rdb redis.Cmdable, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

// OrderCache stores confirmation reads. A nil *OrderCache is a valid no-op cache.
type OrderCache struct {
	RDB redis.Cmdable
}

func (c *OrderCache) Get(ctx context.Context, id string) (orders.Order, bool) {
	if c == nil || c.RDB == nil {
		return orders.Order{}, false
	}
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrder, id)).Bytes()
	if err != nil {
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return orders.Order{}, false
	}
	return o, true
}

func (c *OrderCache) Put(ctx context.Context, o orders.Order) error {
	if c == nil || c.RDB == nil {
		return nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache).Err()
}
