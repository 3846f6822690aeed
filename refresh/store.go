package refresh

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps every Redis failure returned by [Store].
	ErrRedisUnavailable = errors.New("refresh store redis unavailable")
	// ErrTokenMismatch is returned by Rotate when the presented token is not
	// the stored one, including when nothing is stored.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

const (
	rotateStatusMissing  int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
)

// rotateRefreshLua replaces the stored digest when it equals the presented one.
// KEYS[1] = refresh key
// ARGV[1] = presented digest
// ARGV[2] = next digest
// ARGV[3] = ttl in milliseconds
var rotateRefreshLua = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`)

// Store persists refresh token digests keyed by external UUID.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a refresh store. An empty prefix defaults to "refresh:".
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "refresh:"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(uuid string) string {
	return s.prefix + uuid
}

// Save stores token for uuid with ttl, replacing any previous token.
func (s *Store) Save(ctx context.Context, uuid, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("refresh ttl must be > 0")
	}
	if err := s.redis.Set(ctx, s.key(uuid), internal.HashToken(token), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the stored digest for uuid.
func (s *Store) Get(ctx context.Context, uuid string) (string, bool, error) {
	digest, err := s.redis.Get(ctx, s.key(uuid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return digest, true, nil
}

// Matches reports whether token is the live refresh token for uuid.
func (s *Store) Matches(ctx context.Context, uuid, token string) (bool, error) {
	digest, found, err := s.Get(ctx, uuid)
	if err != nil || !found {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(internal.HashToken(token))) == 1, nil
}

// Rotate replaces current with next when current is the live token.
func (s *Store) Rotate(ctx context.Context, uuid, current, next string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("refresh ttl must be > 0")
	}

	status, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{s.key(uuid)},
		internal.HashToken(current),
		internal.HashToken(next),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusMissing, rotateStatusMismatch:
		return ErrTokenMismatch
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrRedisUnavailable, status)
	}
}

// Delete revokes the refresh token for uuid. Deleting an absent token is
// not an error.
func (s *Store) Delete(ctx context.Context, uuid string) error {
	if err := s.redis.Del(ctx, s.key(uuid)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
