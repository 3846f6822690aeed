package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/autherr"
	"github.com/MrEthical07/authcore/internal/stores"
	"go.uber.org/zap"
)

// CodeStore persists verification codes per (role, email).
type CodeStore interface {
	Issue(ctx context.Context, role, email, code string, ttl time.Duration) (time.Duration, error)
	Verify(ctx context.Context, role, email, code string) error
	Redeem(ctx context.Context, role, email, code string) error
	Delete(ctx context.Context, role, email string) error
}

// AttemptBlocker is a FailureCounter that can also block subjects.
type AttemptBlocker interface {
	FailureCounter
	IsBlocked(ctx context.Context, subject string) (bool, time.Duration, error)
	Block(ctx context.Context, subject string, d time.Duration) error
	BlockDuration() time.Duration
}

// VerificationDeps captures verification code flow dependencies.
type VerificationDeps struct {
	Codes CodeStore
	// Attempts returns the verification attempt limiter for role.
	Attempts     func(role string) (AttemptBlocker, bool)
	GenerateCode func() (string, error)
	Deliver      func(ctx context.Context, email, code string) error
	CodeTTL      time.Duration
	Observer     Observer
	Logger       *zap.Logger
}

func (d VerificationDeps) ready() bool {
	return d.Codes != nil && d.Attempts != nil
}

// RunSendVerificationCode issues a code for (role, email) and delivers it.
// A delivery failure removes the stored code so the caller can retry.
func RunSendVerificationCode(ctx context.Context, role, email string, deps VerificationDeps) error {
	if !deps.ready() || deps.GenerateCode == nil || deps.Deliver == nil {
		return autherr.ErrEngineNotReady
	}
	if _, ok := deps.Attempts(role); !ok {
		return autherr.ErrInvalidRole
	}

	code, err := deps.GenerateCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	remaining, err := deps.Codes.Issue(ctx, role, email, code, deps.CodeTTL)
	if err != nil {
		if errors.Is(err, stores.ErrCodeAlreadyIssued) {
			deps.Observer.emit(ctx, Event{Type: EventVerificationAlreadySent, Role: role, Err: autherr.ErrVerificationAlreadySent})
			return autherr.Deny(autherr.ErrVerificationAlreadySent, remaining)
		}
		return autherr.Store(err)
	}

	if err := deps.Deliver(ctx, email, code); err != nil {
		if delErr := deps.Codes.Delete(context.WithoutCancel(ctx), role, email); delErr != nil {
			loggerOrNop(deps.Logger).Warn("verification code cleanup failed",
				zap.String("role", role),
				zap.Error(delErr),
			)
		}
		deps.Observer.emit(ctx, Event{Type: EventVerificationDeliveryFail, Role: role, Err: err})
		return fmt.Errorf("%w: %v", autherr.ErrVerificationDeliveryFailed, err)
	}

	deps.Observer.emit(ctx, Event{Type: EventVerificationIssued, Role: role, Success: true})
	return nil
}

// RunVerifyCode checks code for (role, email). A matching code becomes
// verified and cannot be verified again; it stays redeemable by registration
// until it expires or is consumed.
func RunVerifyCode(ctx context.Context, role, email, code string, deps VerificationDeps) error {
	if !deps.ready() {
		return autherr.ErrEngineNotReady
	}
	attempts, ok := deps.Attempts(role)
	if !ok {
		return autherr.ErrInvalidRole
	}

	if err := checkNotBlocked(ctx, attempts, role, email, deps.Observer); err != nil {
		return err
	}

	err := deps.Codes.Verify(ctx, role, email, code)
	switch {
	case err == nil:
		if resetErr := attempts.Reset(ctx, email); resetErr != nil {
			return autherr.Store(resetErr)
		}
		deps.Observer.emit(ctx, Event{Type: EventVerificationConfirmed, Role: role, Success: true})
		return nil
	case errors.Is(err, stores.ErrCodeNotFound):
		return autherr.ErrVerificationCodeNotFound
	case errors.Is(err, stores.ErrCodeMismatch):
		return recordCodeFailure(ctx, attempts, role, email, deps)
	default:
		return autherr.Store(err)
	}
}

// RunRedeemCode checks code for registration. Verified and unverified codes
// are accepted; the code is not consumed. Failures wrap
// ErrInvalidVerificationCode except blocks and store errors.
func RunRedeemCode(ctx context.Context, role, email, code string, deps VerificationDeps) error {
	if !deps.ready() {
		return autherr.ErrEngineNotReady
	}
	attempts, ok := deps.Attempts(role)
	if !ok {
		return autherr.ErrInvalidRole
	}

	if err := checkNotBlocked(ctx, attempts, role, email, deps.Observer); err != nil {
		return err
	}

	err := deps.Codes.Redeem(ctx, role, email, code)
	switch {
	case err == nil:
		if resetErr := attempts.Reset(ctx, email); resetErr != nil {
			return autherr.Store(resetErr)
		}
		return nil
	case errors.Is(err, stores.ErrCodeNotFound):
		return fmt.Errorf("%w: %w", autherr.ErrInvalidVerificationCode, autherr.ErrVerificationCodeNotFound)
	case errors.Is(err, stores.ErrCodeMismatch):
		failure := recordCodeFailure(ctx, attempts, role, email, deps)
		if errors.Is(failure, autherr.ErrVerificationMismatch) {
			return fmt.Errorf("%w: %w", autherr.ErrInvalidVerificationCode, failure)
		}
		return failure
	default:
		return autherr.Store(err)
	}
}

// ConsumeCode deletes the code for (role, email).
func ConsumeCode(ctx context.Context, role, email string, deps VerificationDeps) error {
	if deps.Codes == nil {
		return autherr.ErrEngineNotReady
	}
	if err := deps.Codes.Delete(ctx, role, email); err != nil {
		return autherr.Store(err)
	}
	return nil
}

func checkNotBlocked(ctx context.Context, attempts AttemptBlocker, role, email string, obs Observer) error {
	blocked, remaining, err := attempts.IsBlocked(ctx, email)
	if err != nil {
		return autherr.Store(err)
	}
	if blocked {
		obs.emit(ctx, Event{Type: EventVerificationBlocked, Role: role, Err: autherr.ErrVerificationBlocked})
		return autherr.Deny(autherr.ErrVerificationBlocked, remaining)
	}
	return nil
}

func recordCodeFailure(ctx context.Context, attempts AttemptBlocker, role, email string, deps VerificationDeps) error {
	count, err := attempts.RecordFailure(ctx, email)
	if err != nil {
		return autherr.Store(err)
	}

	if count <= int64(attempts.Limit()) {
		deps.Observer.emit(ctx, Event{Type: EventVerificationMismatch, Role: role, Err: autherr.ErrVerificationMismatch})
		return autherr.ErrVerificationMismatch
	}

	if err := attempts.Block(ctx, email, 0); err != nil {
		return autherr.Store(err)
	}
	// The next window starts from zero once the block lifts.
	if err := attempts.Reset(ctx, email); err != nil {
		loggerOrNop(deps.Logger).Warn("verification failure counter reset failed",
			zap.String("role", role),
			zap.Error(err),
		)
	}

	deps.Observer.emit(ctx, Event{Type: EventVerificationBlocked, Role: role, Err: autherr.ErrVerificationBlocked})
	return autherr.Deny(autherr.ErrVerificationBlocked, attempts.BlockDuration())
}
