package redisx

import "time"

const (
	// Order confirmation cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	// Orders never change after creation, the TTL only bounds memory.
	TTLOrderCache = 10 * time.Minute
	TTLDedup      = 48 * time.Hour
)
