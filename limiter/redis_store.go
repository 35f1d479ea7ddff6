package limiter

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

//go:embed token_bucket.lua
var tokenBucketScript string

var tokenBucket = redis.NewScript(tokenBucketScript)

// redisStore implements Store on top of Redis. The refill-and-charge step
// runs inside a Lua script, which makes it atomic across every limiter
// instance sharing the same Redis, so a single global budget per bucket is
// enforced no matter how many replicas call Take concurrently.
type redisStore struct {
	client redis.Cmdable // Cmdable keeps ClusterClient and friends usable.
}

// NewRedisStore creates a bucket store backed by a pre-configured go-redis
// client. Script.Run falls back to EVAL on NOSCRIPT, so a Redis restart that
// drops the script cache heals itself on the next call.
func NewRedisStore(client redis.Cmdable) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Take(ctx context.Context, key string, tier Tier, now time.Time) (TakeResult, error) {
	// Fractional epoch seconds: sub-second refill needs the fraction.
	nowFloat := float64(now.UnixMicro()) / 1e6
	ttl := int64(tier.bucketTTL().Seconds())

	result, err := tokenBucket.Run(ctx, s.client, []string{key},
		nowFloat,            // ARGV[1]: current time, float seconds
		tier.RefillRate,     // ARGV[2]: tokens per second
		tier.Capacity,       // ARGV[3]: burst capacity
		tier.CostPerRequest, // ARGV[4]: tokens to charge
		ttl,                 // ARGV[5]: bucket expiry, seconds
	).Result()
	if err != nil {
		// Connection refused, timeout, cancelled context: all of these mean
		// the shared store cannot answer, which the evaluator turns into its
		// degradation policy rather than an error on the request path.
		return TakeResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		log.Error().Str("key", key).Interface("result", result).Msg("token bucket script returned unexpected shape")
		return TakeResult{}, fmt.Errorf("%w: unexpected script reply %T", ErrStoreUnavailable, result)
	}

	allowed, _ := values[0].(int64)
	tokens, err := replyFloat(values[1])
	if err != nil {
		log.Error().Str("key", key).Interface("result", values[1]).Msg("token bucket script returned unparseable balance")
		return TakeResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return TakeResult{Allowed: allowed == 1, Tokens: tokens}, nil
}

// replyFloat decodes the token balance from a Lua reply. The script returns
// it as a string to survive Redis truncating Lua numbers to integers.
func replyFloat(v interface{}) (float64, error) {
	switch v := v.(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected balance type %T", v)
	}
}
