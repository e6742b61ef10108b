package redisx

import "time"

const (
	// Replay create_preference: idem:checkout:{Idempotency-Key} -> hash {fp, state, body}
	KeyIdemCheckout = "idem:checkout:%s"

	// Cache order: order:{order_id} -> hash {v: updated_at micros, data: Order JSON}
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency        = 24 * time.Hour
	TTLIdempotencyPending = time.Minute
	TTLOrderCache         = 5 * time.Minute
	TTLDedup              = 48 * time.Hour
)
