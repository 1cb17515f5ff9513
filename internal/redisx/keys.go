package redisx

import "time"

const (
	// Idempotent order create: idem:order:create:{user_id}:{idempotency_key} -> order JSON
	KeyIdemOrderCreate = "idem:order:create:%d:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
