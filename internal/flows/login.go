package flows

import (
	"context"
	"strconv"

	"github.com/MrEthical07/authcore/internal/autherr"
	"go.uber.org/zap"
)

// FailureCounter counts failed attempts per subject within a window.
type FailureCounter interface {
	RecordFailure(ctx context.Context, subject string) (int64, error)
	Reset(ctx context.Context, subject string) error
	Limit() int
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Store PrincipalStore
	// Failures returns the login failure counter for role.
	Failures       func(role string) (FailureCounter, bool)
	VerifyPassword func(password, encodedHash string) (bool, error)
	// NotifyLockout is called after the lock is persisted. It must not fail
	// the login; implementations log their own errors.
	NotifyLockout func(ctx context.Context, p Principal)
	Session       SessionDeps
	Observer      Observer
	Logger        *zap.Logger
}

// RunLogin authenticates email with password for role. email must already be
// normalized.
func RunLogin(ctx context.Context, role, email, password string, deps LoginDeps) (SessionTokens, error) {
	if deps.Store == nil || deps.Failures == nil || deps.VerifyPassword == nil {
		return SessionTokens{}, autherr.ErrEngineNotReady
	}
	counter, ok := deps.Failures(role)
	if !ok {
		return SessionTokens{}, autherr.ErrInvalidRole
	}

	p, found, err := deps.Store.FindByEmail(ctx, email)
	if err != nil {
		return SessionTokens{}, autherr.Store(err)
	}
	if !found || p.Role != role {
		deps.Observer.emit(ctx, Event{Type: EventLoginNotFound, Role: role, Err: autherr.ErrPrincipalNotFound})
		return SessionTokens{}, autherr.ErrPrincipalNotFound
	}
	if p.Locked {
		deps.Observer.emit(ctx, Event{Type: EventLoginLockedRejected, Role: role, Subject: p.ExternalUUID, Err: autherr.ErrAccountLocked})
		return SessionTokens{}, autherr.ErrAccountLocked
	}
	if p.LoginType != LoginTypePassword || p.PasswordHash == "" {
		deps.Observer.emit(ctx, Event{Type: EventLoginFailure, Role: role, Subject: p.ExternalUUID, Err: autherr.ErrPasswordLoginUnavailable})
		return SessionTokens{}, autherr.ErrPasswordLoginUnavailable
	}

	match, verifyErr := deps.VerifyPassword(password, p.PasswordHash)
	if verifyErr != nil {
		loggerOrNop(deps.Logger).Warn("password hash verification failed",
			zap.String("external_uuid", p.ExternalUUID),
			zap.Error(verifyErr),
		)
	}
	if verifyErr != nil || !match {
		return SessionTokens{}, handleLoginFailure(ctx, counter, p, deps)
	}

	if err := counter.Reset(ctx, email); err != nil {
		return SessionTokens{}, autherr.Store(err)
	}

	tokens, err := issueSession(ctx, p, deps.Session)
	if err != nil {
		return SessionTokens{}, err
	}

	deps.Observer.emit(ctx, Event{Type: EventLoginSuccess, Role: role, Subject: p.ExternalUUID, Success: true})
	return tokens, nil
}

func handleLoginFailure(ctx context.Context, counter FailureCounter, p Principal, deps LoginDeps) error {
	count, err := counter.RecordFailure(ctx, p.Email)
	if err != nil {
		return autherr.Store(err)
	}

	if count < int64(counter.Limit()) {
		deps.Observer.emit(ctx, Event{
			Type:     EventLoginFailure,
			Role:     p.Role,
			Subject:  p.ExternalUUID,
			Err:      autherr.ErrInvalidPassword,
			Metadata: map[string]string{"failures": strconv.FormatInt(count, 10)},
		})
		return autherr.ErrInvalidPassword
	}

	if err := deps.Store.Lock(ctx, p.ID); err != nil {
		return autherr.Store(err)
	}
	deps.Observer.emit(ctx, Event{
		Type:     EventAccountLocked,
		Role:     p.Role,
		Subject:  p.ExternalUUID,
		Err:      autherr.ErrAccountLocked,
		Metadata: map[string]string{"failures": strconv.FormatInt(count, 10)},
	})

	if deps.NotifyLockout != nil {
		deps.NotifyLockout(ctx, p)
	}
	return autherr.ErrAccountLocked
}
