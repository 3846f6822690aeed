package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal/autherr"
)

// RefreshDeps captures refresh exchange dependencies.
type RefreshDeps struct {
	Store PrincipalStore
	// ParseRefresh verifies a refresh token. Expired tokens must match
	// ErrTokenExpired.
	ParseRefresh func(token string) (subject, role string, err error)
	// Rotate swaps current for next. A stale current token must match
	// ErrRefreshInvalid.
	Rotate        func(ctx context.Context, uuid, current, next string) error
	DeleteRefresh func(ctx context.Context, uuid string) error
	Session       SessionDeps
	Observer      Observer
}

// RunRefresh exchanges the live refresh token for a new token pair. The
// presented token stops being valid.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) (SessionTokens, error) {
	if deps.Store == nil || deps.ParseRefresh == nil || deps.Rotate == nil || deps.DeleteRefresh == nil {
		return SessionTokens{}, autherr.ErrEngineNotReady
	}

	subject, role, err := deps.ParseRefresh(token)
	if err != nil {
		if !errors.Is(err, autherr.ErrTokenExpired) {
			err = fmt.Errorf("%w: %v", autherr.ErrRefreshInvalid, err)
		}
		deps.Observer.emit(ctx, Event{Type: EventRefreshFailure, Err: err})
		return SessionTokens{}, err
	}

	p, found, err := deps.Store.FindByUUID(ctx, subject)
	if err != nil {
		return SessionTokens{}, autherr.Store(err)
	}
	if !found || p.Role != role {
		deps.Observer.emit(ctx, Event{Type: EventRefreshFailure, Role: role, Subject: subject, Err: autherr.ErrRefreshInvalid})
		return SessionTokens{}, autherr.ErrRefreshInvalid
	}
	if p.Locked {
		if err := deps.DeleteRefresh(ctx, p.ExternalUUID); err != nil {
			return SessionTokens{}, autherr.Store(err)
		}
		deps.Observer.emit(ctx, Event{Type: EventRefreshFailure, Role: role, Subject: subject, Err: autherr.ErrAccountLocked})
		return SessionTokens{}, autherr.ErrAccountLocked
	}

	access, next, err := signPair(p.ExternalUUID, p.Role, deps.Session)
	if err != nil {
		return SessionTokens{}, err
	}
	if err := deps.Rotate(ctx, p.ExternalUUID, token, next); err != nil {
		if errors.Is(err, autherr.ErrRefreshInvalid) {
			deps.Observer.emit(ctx, Event{Type: EventRefreshFailure, Role: role, Subject: subject, Err: err})
			return SessionTokens{}, err
		}
		return SessionTokens{}, autherr.Store(err)
	}

	deps.Observer.emit(ctx, Event{Type: EventRefreshSuccess, Role: p.Role, Subject: p.ExternalUUID, Success: true})
	return SessionTokens{
		ExternalUUID: p.ExternalUUID,
		AccessToken:  access,
		RefreshToken: next,
	}, nil
}
