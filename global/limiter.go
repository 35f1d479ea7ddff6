// Package global holds the process-wide default limiter, for applications
// that want one shared instance instead of threading a *limiter.Limiter
// through every handler constructor.
package global

import (
	"context"
	"sync/atomic"

	"github.com/storyweave/ratelimit/limiter"
)

// defaultLimiter starts as an in-memory limiter over the default tier table,
// so checks work before SetLimiter wires the real store.
func defaultLimiter() *atomic.Value {
	v := &atomic.Value{}
	l, err := limiter.New(&limiter.Config{StorageType: limiter.StorageMemory})
	if err != nil {
		// Only reachable if the default config stops validating.
		panic(err)
	}
	v.Store(l)
	return v
}

var globalLimiter = defaultLimiter()

// SetLimiter replaces the global limiter instance, typically during startup
// once the Redis-backed configuration is loaded.
func SetLimiter(l *limiter.Limiter) {
	globalLimiter.Store(l)
}

// GetLimiter returns the current global limiter instance.
func GetLimiter() *limiter.Limiter {
	return globalLimiter.Load().(*limiter.Limiter)
}

// Check runs one admission check against the global limiter.
func Check(ctx context.Context, identifier, tier string) (limiter.Decision, error) {
	return GetLimiter().Check(ctx, identifier, tier)
}
