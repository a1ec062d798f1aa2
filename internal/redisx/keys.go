package redisx

import "time"

const (
	// Cache for public order lookups: order:number:{order_number} -> JSON order
	KeyOrderByNumber = "order:number:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)
