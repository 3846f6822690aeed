package stores

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCodeAlreadyIssued    = errors.New("verification code already issued")
	ErrCodeNotFound         = errors.New("verification code not found")
	ErrCodeMismatch         = errors.New("verification code mismatch")
	ErrCodeRedisUnavailable = errors.New("verification code redis unavailable")
)

const (
	fieldDigest   = "digest"
	fieldVerified = "verified"
	fieldIssuedAt = "issued_at"
)

// issueCodeLua stores a new code unless one is outstanding.
// KEYS[1] = record key
// ARGV[1] = code digest (hex)
// ARGV[2] = ttl in milliseconds
// ARGV[3] = issue time (unix seconds)
//
// Returns 0 when stored, otherwise the remaining PTTL of the outstanding code.
var issueCodeLua = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl ~= -2 then
  if ttl < 1 then
    ttl = 1
  end
  return ttl
end
redis.call('HSET', KEYS[1], 'digest', ARGV[1], 'verified', '0', 'issued_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 0
`)

// verifyCodeLua marks a matching, not yet verified code as verified.
// KEYS[1] = record key
// ARGV[1] = provided digest (hex)
//
// Returns 1 on match, error string "not_found" or "mismatch" otherwise.
// A verified code is reported as not_found; the TTL is left untouched.
var verifyCodeLua = redis.NewScript(`
local digest = redis.call('HGET', KEYS[1], 'digest')
if not digest then
  return {err='not_found'}
end
if redis.call('HGET', KEYS[1], 'verified') == '1' then
  return {err='not_found'}
end
if digest ~= ARGV[1] then
  return {err='mismatch'}
end
redis.call('HSET', KEYS[1], 'verified', '1')
return 1
`)

// CodeRecord is the stored state of one verification code.
type CodeRecord struct {
	Verified bool
	IssuedAt time.Time
}

// CodeStore persists verification codes keyed by role and email.
type CodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCodeStore creates a code store. An empty prefix defaults to
// "email:verification:code:".
func NewCodeStore(redisClient redis.UniversalClient, prefix string) *CodeStore {
	if prefix == "" {
		prefix = "email:verification:code:"
	}
	return &CodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CodeStore) key(role, email string) string {
	return s.prefix + role + ":" + email
}

// Issue stores code for (role, email) with ttl. When a code is already
// outstanding it returns ErrCodeAlreadyIssued and the remaining lifetime of
// the outstanding code.
func (s *CodeStore) Issue(ctx context.Context, role, email, code string, ttl time.Duration) (time.Duration, error) {
	if ttl <= 0 {
		return 0, errors.New("verification code ttl must be > 0")
	}

	remaining, err := issueCodeLua.Run(ctx, s.redis,
		[]string{s.key(role, email)},
		digest(code),
		ttl.Milliseconds(),
		time.Now().Unix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}
	if remaining > 0 {
		return time.Duration(remaining) * time.Millisecond, ErrCodeAlreadyIssued
	}

	return 0, nil
}

// Verify checks code and marks the record verified on a match. A record that
// is absent, expired or already verified yields ErrCodeNotFound.
func (s *CodeStore) Verify(ctx context.Context, role, email, code string) error {
	err := verifyCodeLua.Run(ctx, s.redis, []string{s.key(role, email)}, digest(code)).Err()
	if err == nil {
		return nil
	}

	switch {
	case strings.Contains(err.Error(), "not_found"):
		return ErrCodeNotFound
	case strings.Contains(err.Error(), "mismatch"):
		return ErrCodeMismatch
	default:
		return fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}
}

// Redeem checks code without changing the record. Verified and unverified
// codes are both accepted.
func (s *CodeStore) Redeem(ctx context.Context, role, email, code string) error {
	stored, err := s.redis.HGet(ctx, s.key(role, email), fieldDigest).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest(code))) != 1 {
		return ErrCodeMismatch
	}
	return nil
}

// Get returns the stored record for (role, email).
func (s *CodeStore) Get(ctx context.Context, role, email string) (*CodeRecord, error) {
	values, err := s.redis.HGetAll(ctx, s.key(role, email)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}
	if len(values) == 0 || values[fieldDigest] == "" {
		return nil, ErrCodeNotFound
	}

	record := &CodeRecord{Verified: values[fieldVerified] == "1"}
	if raw, ok := values[fieldIssuedAt]; ok {
		var unix int64
		if _, scanErr := fmt.Sscan(raw, &unix); scanErr == nil {
			record.IssuedAt = time.Unix(unix, 0)
		}
	}
	return record, nil
}

// Delete removes the code for (role, email). Deleting an absent code is not
// an error.
func (s *CodeStore) Delete(ctx context.Context, role, email string) error {
	if err := s.redis.Del(ctx, s.key(role, email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}
	return nil
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
