package limiter

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds the limiter configuration.
type Config struct {
	StorageType string `yaml:"storage_type"` // "memory" or "redis"
	// RedisURL is the connection string for the shared store, e.g.
	// "redis://localhost:6379/0". Required when StorageType is "redis".
	RedisURL string `yaml:"redis_url"`
	// KeyPrefix namespaces bucket keys in the store. Defaults to "rate_limit:".
	KeyPrefix string `yaml:"key_prefix"`
	// StoreTimeout bounds each store round trip. A check that exceeds it is
	// treated as a store outage, not as a denial. Defaults to 50ms.
	StoreTimeout time.Duration `yaml:"store_timeout"`
	// FailurePolicy decides what happens while the store is unreachable:
	// FailOpen admits everything, FailClosed denies everything. Defaults to
	// FailOpen.
	FailurePolicy string `yaml:"failure_policy"`
	// Tiers maps tier names to policies. Defaults to DefaultTiers() when
	// empty. The table is open-ended: callers may register any tier set.
	Tiers map[string]Tier `yaml:"tiers"`
}

// ValidateAndPrepare validates the raw config and fills in defaults.
func (c *Config) ValidateAndPrepare() error {
	if c.StorageType != StorageMemory && c.StorageType != StorageRedis {
		return fmt.Errorf("invalid storage_type: %q, must be %q or %q", c.StorageType, StorageMemory, StorageRedis)
	}
	if c.StorageType == StorageRedis && c.RedisURL == "" {
		return fmt.Errorf("redis_url is required when storage_type is %q", StorageRedis)
	}

	switch c.FailurePolicy {
	case "":
		c.FailurePolicy = FailOpen
	case FailOpen, FailClosed:
	default:
		return fmt.Errorf("invalid failure_policy: %q, must be %q or %q", c.FailurePolicy, FailOpen, FailClosed)
	}

	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}

	if len(c.Tiers) == 0 {
		log.Debug().Msg("no tiers configured, using default tier table")
		c.Tiers = DefaultTiers()
	}

	for name, tier := range c.Tiers {
		if tier.Capacity <= 0 {
			return fmt.Errorf("tier %q has invalid capacity: %g, must be positive", name, tier.Capacity)
		}
		if tier.RefillRate <= 0 {
			return fmt.Errorf("tier %q has invalid refill_rate: %g, must be positive", name, tier.RefillRate)
		}
		if tier.CostPerRequest <= 0 {
			return fmt.Errorf("tier %q has invalid cost_per_request: %g, must be positive", name, tier.CostPerRequest)
		}
		if tier.CostPerRequest > tier.Capacity {
			return fmt.Errorf("tier %q has cost_per_request %g exceeding capacity %g, every request would be denied", name, tier.CostPerRequest, tier.Capacity)
		}
	}
	return nil
}
