package limiter

import "time"

// Tier is a named rate limiting policy applied to a class of endpoints and
// callers. Tiers are immutable once the limiter is constructed; adding one is
// a configuration change, not a runtime operation.
type Tier struct {
	// Capacity is the maximum token balance, i.e. the largest burst a caller
	// can spend at once.
	Capacity float64 `yaml:"capacity"`
	// RefillRate is the number of tokens earned per second.
	RefillRate float64 `yaml:"refill_rate"`
	// CostPerRequest is the number of tokens one request consumes.
	CostPerRequest float64 `yaml:"cost_per_request"`
	// Description is a human-readable note about what the tier covers.
	Description string `yaml:"description"`
}

// fullRefill is the time an empty bucket needs to reach capacity.
func (t Tier) fullRefill() time.Duration {
	return time.Duration(t.Capacity / t.RefillRate * float64(time.Second))
}

// bucketTTL is the store expiry for a bucket under this tier: roughly twice
// the full refill time plus a padding, so an abandoned bucket is reclaimed
// only after it would have refilled anyway.
func (t Tier) bucketTTL() time.Duration {
	return 2*t.fullRefill() + bucketTTLPadding
}

// DefaultTiers returns the policy table the service ships with: AI endpoints
// get the strictest budgets (each request fans out to an expensive model
// call), regular API endpoints get looser ones, and auth endpoints are kept
// slow to blunt credential stuffing.
func DefaultTiers() map[string]Tier {
	return map[string]Tier{
		"ai_authenticated": {
			RefillRate:     2,
			Capacity:       5,
			CostPerRequest: 1,
			Description:    "AI endpoints for authenticated users",
		},
		"ai_anonymous": {
			RefillRate:     0.5,
			Capacity:       2,
			CostPerRequest: 1,
			Description:    "AI endpoints for anonymous users",
		},
		"api_authenticated": {
			RefillRate:     10,
			Capacity:       20,
			CostPerRequest: 1,
			Description:    "Regular API endpoints for authenticated users",
		},
		"api_anonymous": {
			RefillRate:     5,
			Capacity:       10,
			CostPerRequest: 1,
			Description:    "Regular API endpoints for anonymous users",
		},
		"auth": {
			RefillRate:     0.5,
			Capacity:       3,
			CostPerRequest: 1,
			Description:    "Authentication endpoints (prevent brute force)",
		},
	}
}
