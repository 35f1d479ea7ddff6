package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownTier means the caller asked for a tier absent from the policy
	// table. This is a programming error in the caller, not a runtime
	// condition: it is surfaced immediately instead of silently allowing or
	// denying.
	ErrUnknownTier = errors.New("limiter: unknown tier")
	// ErrEmptyIdentifier means the caller passed an empty partition key.
	ErrEmptyIdentifier = errors.New("limiter: empty identifier")
	// ErrStoreUnavailable marks transient store faults (connection refused,
	// timeout). Check never returns it; stores wrap it so the evaluator can
	// apply the configured failure policy.
	ErrStoreUnavailable = errors.New("limiter: store unavailable")
)

// Decision is the structured verdict for one request. It is always
// decision-shaped: infrastructure faults degrade into an allowed or denied
// Decision per the failure policy, they never escape into the request path.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Remaining is the whole number of tokens left after this decision,
	// floored for display; internal accounting stays fractional.
	Remaining int64
	// Limit is the tier's burst capacity.
	Limit int64
	// Reset is when the bucket would next be full.
	Reset time.Time
	// RetryAfter is zero when allowed; on denial it is how long the caller
	// should wait before enough tokens have accumulated.
	RetryAfter time.Duration
	// Degraded is set when the verdict came from the failure policy instead
	// of the shared store, so callers can log or alert on the outage.
	Degraded bool
}

// Limiter answers "may this identifier perform one action under this tier's
// policy right now?" against a shared bucket store.
type Limiter struct {
	cfg   *Config
	store Store
}

// New creates a Limiter from a validated config, building the store the
// config names. ValidateAndPrepare is called on cfg if it has not been.
func New(cfg *Config) (*Limiter, error) {
	if err := cfg.ValidateAndPrepare(); err != nil {
		return nil, err
	}

	var store Store
	switch cfg.StorageType {
	case StorageRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("limiter: invalid redis url: %w", err)
		}
		store = NewRedisStore(redis.NewClient(opt))
	case StorageMemory:
		store = NewMemoryStore()
	}

	log.Info().
		Str("storage", cfg.StorageType).
		Str("failure_policy", cfg.FailurePolicy).
		Dur("store_timeout", cfg.StoreTimeout).
		Int("tiers", len(cfg.Tiers)).
		Msg("rate limiter initialized")
	return &Limiter{cfg: cfg, store: store}, nil
}

// NewWithStore creates a Limiter over a caller-supplied store. Used by tests
// and by deployments that share one redis client across subsystems.
func NewWithStore(cfg *Config, store Store) (*Limiter, error) {
	if err := cfg.ValidateAndPrepare(); err != nil {
		return nil, err
	}
	return &Limiter{cfg: cfg, store: store}, nil
}

// Tier returns the named policy and whether it exists.
func (l *Limiter) Tier(name string) (Tier, bool) {
	t, ok := l.cfg.Tiers[name]
	return t, ok
}

// Check evaluates one request for identifier under the named tier.
//
// The identifier is an opaque partition key built by the caller, by
// convention "user:<id>" or "ip:<address>". An unknown tier or empty
// identifier is reported as an error; a store outage is not, it degrades
// into a Decision per the configured failure policy.
func (l *Limiter) Check(ctx context.Context, identifier, tier string) (Decision, error) {
	if identifier == "" {
		return Decision{}, ErrEmptyIdentifier
	}
	pol, ok := l.cfg.Tiers[tier]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	now := time.Now()
	key := l.cfg.KeyPrefix + tier + ":" + identifier

	// The store timeout is separate from the caller's request deadline: a
	// slow store must not stall the request, and a timed-out check counts as
	// an outage, not a denial.
	storeCtx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	res, err := l.store.Take(storeCtx, key, pol, now)
	if err != nil {
		dec := l.degrade(pol, now)
		log.Warn().Err(err).
			Str("key", key).
			Str("failure_policy", l.cfg.FailurePolicy).
			Bool("allowed", dec.Allowed).
			Msg("store unavailable, applying failure policy")
		return dec, nil
	}

	dec := decisionFrom(pol, res, now)
	if dec.Allowed {
		log.Debug().Str("key", key).Int64("remaining", dec.Remaining).Msg("request allowed")
	} else {
		log.Warn().Str("key", key).Str("tier", tier).Dur("retry_after", dec.RetryAfter).Msg("rate limit exceeded")
	}
	return dec, nil
}

// decisionFrom shapes a store result into the caller-facing verdict.
func decisionFrom(pol Tier, res TakeResult, now time.Time) Decision {
	dec := Decision{
		Allowed:   res.Allowed,
		Remaining: int64(math.Floor(res.Tokens)),
		Limit:     int64(pol.Capacity),
		Reset:     now.Add(refillTime(pol, pol.Capacity-res.Tokens)),
	}
	if !res.Allowed {
		wait := math.Ceil((pol.CostPerRequest - res.Tokens) / pol.RefillRate)
		if wait < 1 {
			wait = 1
		}
		dec.RetryAfter = time.Duration(wait) * time.Second
	}
	return dec
}

// degrade produces the verdict used while the store cannot answer. Fail-open
// hands out an effectively-unlimited payload; fail-closed denies with a fixed
// retry hint.
func (l *Limiter) degrade(pol Tier, now time.Time) Decision {
	if l.cfg.FailurePolicy == FailClosed {
		return Decision{
			Limit:      int64(pol.Capacity),
			Reset:      now.Add(degradedRetryAfter),
			RetryAfter: degradedRetryAfter,
			Degraded:   true,
		}
	}
	return Decision{
		Allowed:   true,
		Remaining: int64(pol.Capacity),
		Limit:     int64(pol.Capacity),
		Reset:     now,
		Degraded:  true,
	}
}

// refillTime is how long the tier needs to earn the given number of tokens.
func refillTime(pol Tier, tokens float64) time.Duration {
	if tokens <= 0 {
		return 0
	}
	return time.Duration(tokens / pol.RefillRate * float64(time.Second))
}
