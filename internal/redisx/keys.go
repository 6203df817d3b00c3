package redisx

import "time"

const (
	// Order snapshot cache: order:snapshot:{order_id} -> full order JSON.
	// Reconnecting clients re-fetch through this before falling back to the DB.
	KeyOrderSnapshot = "order:snapshot:%s"

	// Dedup for event-stream consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Live-order board per restaurant: hash board:{restaurant_id},
	// field = order number, value = compact board entry JSON.
	KeyBoard = "board:%s"
)

var (
	TTLSnapshot = 5 * time.Minute
	TTLDedup    = 48 * time.Hour
)
