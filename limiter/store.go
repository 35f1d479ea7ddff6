package limiter

import (
	"context"
	"time"
)

// Store persists bucket state shared between limiter instances.
type Store interface {
	// Take runs one refill-and-charge step for the bucket at key under the
	// given tier. The whole step (fetch, refill, charge or refresh) must be
	// atomic with respect to concurrent Take calls for the same key: two
	// callers racing on the last token must never both succeed.
	//
	// now is supplied by the caller so implementations stay deterministic
	// under test. Store faults are reported as errors wrapping
	// ErrStoreUnavailable; a denial is not an error.
	Take(ctx context.Context, key string, tier Tier, now time.Time) (TakeResult, error)
}

// TakeResult is the outcome of one atomic refill-and-charge step.
type TakeResult struct {
	// Allowed reports whether the bucket held enough tokens to cover the
	// tier's cost. Denied requests are not charged.
	Allowed bool
	// Tokens is the post-update balance. It stays fractional: rounding only
	// happens at the display edge, never in the accounting.
	Tokens float64
}
