package limiter

import "time"

// Storage types
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Failure policies applied when the backing store is unreachable.
const (
	FailOpen   = "open"   // allow every request while the store is down
	FailClosed = "closed" // deny every request while the store is down
)

const (
	// DefaultKeyPrefix namespaces bucket keys in the store.
	DefaultKeyPrefix = "rate_limit:"

	// DefaultStoreTimeout bounds the store round trip per check. The check
	// sits on every protected request's hot path, so it must stay far below
	// a normal request timeout.
	DefaultStoreTimeout = 50 * time.Millisecond

	// degradedRetryAfter is the retry hint handed out while failing closed.
	degradedRetryAfter = 1 * time.Second

	// bucketTTLPadding is added on top of the full-refill time when computing
	// a bucket's expiry, so an idle bucket is never reclaimed before it could
	// have refilled completely.
	bucketTTLPadding = 60 * time.Second
)
