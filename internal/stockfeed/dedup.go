package stockfeed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sailsteel/order-desk/internal/redisx"
)

const service = "stockfeed"

// RedisDeduper keeps processed event ids under dedup:stockfeed:{event_id}.
type RedisDeduper struct {
	RDB redis.Cmdable
}

func (d RedisDeduper) MarkOnce(ctx context.Context, eventID string) (bool, error) {
	return redisx.MarkOnce(ctx, d.RDB, fmt.Sprintf(redisx.KeyDedup, service, eventID), redisx.TTLDedup)
}

func (d RedisDeduper) Forget(ctx context.Context, eventID string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(redisx.KeyDedup, service, eventID)).Err()
}
