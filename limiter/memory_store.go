package limiter

import (
	"context"
	"math"
	"sync"
	"time"
)

// sweepInterval is how many Take calls pass between full expiry sweeps.
const sweepInterval = 4096

// bucket is the in-memory state for one (identifier, tier) pair.
type bucket struct {
	tokens     float64
	lastUpdate time.Time
	expiresAt  time.Time
}

// memoryStore implements Store with a mutex-guarded map. State is local to
// the process, so it cannot enforce a global budget across replicas; it
// exists for unit tests, local development and single-instance deployments.
type memoryStore struct {
	mu      sync.Mutex
	buckets map[string]bucket
	takes   int
}

// NewMemoryStore creates an in-process bucket store.
func NewMemoryStore() Store {
	return &memoryStore{buckets: make(map[string]bucket)}
}

func (s *memoryStore) Take(ctx context.Context, key string, tier Tier, now time.Time) (TakeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.takes++
	if s.takes%sweepInterval == 0 {
		s.sweep(now)
	}

	b, ok := s.buckets[key]
	if !ok || now.After(b.expiresAt) {
		b = bucket{tokens: tier.Capacity, lastUpdate: now}
	}

	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0 // clock skew
	}
	b.tokens = math.Min(tier.Capacity, b.tokens+elapsed*tier.RefillRate)
	b.lastUpdate = now

	allowed := b.tokens >= tier.CostPerRequest
	if allowed {
		b.tokens -= tier.CostPerRequest
	}

	// Written back even on denial so the partial refill sticks.
	b.expiresAt = now.Add(tier.bucketTTL())
	s.buckets[key] = b

	return TakeResult{Allowed: allowed, Tokens: b.tokens}, nil
}

// sweep drops buckets past their expiry, mirroring the store-side TTL the
// Redis backend gets for free. Caller holds the mutex.
func (s *memoryStore) sweep(now time.Time) {
	for key, b := range s.buckets {
		if now.After(b.expiresAt) {
			delete(s.buckets, key)
		}
	}
}
