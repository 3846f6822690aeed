package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
)

// ErrInvalidPolicy is returned by [NewAttemptLimiter] for unusable policies.
var ErrInvalidPolicy = errors.New("invalid attempt policy")

// Policy configures one attempt limiter.
type Policy struct {
	// FailurePrefix is prepended to the subject to form the counter key.
	FailurePrefix string
	// BlockPrefix is prepended to the subject to form the block key. Empty
	// disables Block and IsBlocked.
	BlockPrefix string
	// Limit is the failure threshold the owning flow compares counts against.
	Limit int
	// Window is the TTL attached to the counter on its first failure.
	Window time.Duration
	// BlockDuration is the default block applied by flows once Limit is exceeded.
	BlockDuration time.Duration
}

// AttemptLimiter counts failures per subject and optionally blocks subjects.
type AttemptLimiter struct {
	counter *rate.Counter
	policy  Policy
}

// NewAttemptLimiter creates a limiter for policy.
func NewAttemptLimiter(counter *rate.Counter, policy Policy) (*AttemptLimiter, error) {
	if counter == nil {
		return nil, errors.New("attempt limiter: counter is required")
	}
	if policy.FailurePrefix == "" || policy.Limit <= 0 || policy.Window <= 0 {
		return nil, ErrInvalidPolicy
	}
	if policy.BlockPrefix != "" && policy.BlockDuration <= 0 {
		return nil, ErrInvalidPolicy
	}
	return &AttemptLimiter{counter: counter, policy: policy}, nil
}

// Limit returns the configured failure threshold.
func (l *AttemptLimiter) Limit() int {
	return l.policy.Limit
}

// BlockDuration returns the configured block duration.
func (l *AttemptLimiter) BlockDuration() time.Duration {
	return l.policy.BlockDuration
}

// RecordFailure increments the failure counter for subject and returns the
// new count. The window starts with the first failure.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, subject string) (int64, error) {
	return l.counter.IncrementWithTTL(ctx, l.failureKey(subject), l.policy.Window)
}

// Failures returns the current failure count; an absent counter is zero.
func (l *AttemptLimiter) Failures(ctx context.Context, subject string) (int64, error) {
	count, _, err := l.counter.Get(ctx, l.failureKey(subject))
	return count, err
}

// IsBlocked reports whether subject is currently blocked and for how long.
func (l *AttemptLimiter) IsBlocked(ctx context.Context, subject string) (bool, time.Duration, error) {
	if l.policy.BlockPrefix == "" {
		return false, 0, nil
	}

	remaining, found, err := l.counter.TTL(ctx, l.blockKey(subject))
	if err != nil {
		return false, 0, err
	}
	return found, remaining, nil
}

// Block marks subject as blocked for d. A non-positive d uses the policy
// block duration.
func (l *AttemptLimiter) Block(ctx context.Context, subject string, d time.Duration) error {
	if l.policy.BlockPrefix == "" {
		return ErrInvalidPolicy
	}
	if d <= 0 {
		d = l.policy.BlockDuration
	}
	return l.counter.SetWithTTL(ctx, l.blockKey(subject), "1", d)
}

// Reset clears the failure counter for subject. An active block is kept.
func (l *AttemptLimiter) Reset(ctx context.Context, subject string) error {
	return l.counter.Delete(ctx, l.failureKey(subject))
}

func (l *AttemptLimiter) failureKey(subject string) string {
	return l.policy.FailurePrefix + subject
}

func (l *AttemptLimiter) blockKey(subject string) string {
	return l.policy.BlockPrefix + subject
}
