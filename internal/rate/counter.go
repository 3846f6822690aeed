package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every failure returned by the backing Redis client.
var ErrRedisUnavailable = errors.New("redis unavailable")

var incrementWithTTLScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Counter is a fixed-window counter store over a shared Redis keyspace.
type Counter struct {
	redis redis.UniversalClient
}

// NewCounter creates a [Counter] backed by the given Redis client.
func NewCounter(redisClient redis.UniversalClient) *Counter {
	return &Counter{redis: redisClient}
}

// IncrementWithTTL increments key and attaches ttl when the key was created
// by this call. Both steps run in one script.
func (c *Counter) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, errors.New("rate: ttl must be > 0")
	}

	count, err := incrementWithTTLScript.Run(ctx, c.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count, nil
}

// Increment increments key without touching its TTL. An absent key is
// created at 1 with no expiry.
func (c *Counter) Increment(ctx context.Context, key string) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Expire sets the TTL of key.
func (c *Counter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.redis.PExpire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the counter value. found is false when the key is absent.
func (c *Counter) Get(ctx context.Context, key string) (int64, bool, error) {
	count, err := c.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, true, nil
}

// SetWithTTL stores value under key with the given TTL, replacing any
// previous value.
func (c *Counter) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key. found is false when the key is
// absent. Keys without expiry report found=true and a zero duration.
func (c *Counter) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := c.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// go-redis reports -2 (absent) and -1 (no expiry) as raw durations.
	switch {
	case ttl == -2:
		return 0, false, nil
	case ttl < 0:
		return 0, true, nil
	}
	return ttl, true, nil
}

// Delete removes keys. Deleting absent keys is not an error.
func (c *Counter) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
