package flows

import (
	"context"

	"github.com/MrEthical07/authcore/internal/autherr"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	DeleteRefresh func(ctx context.Context, uuid string) error
	Observer      Observer
}

// RunLogout revokes the refresh token of uuid. Revoking an absent token
// succeeds.
func RunLogout(ctx context.Context, uuid string, deps LogoutDeps) error {
	if deps.DeleteRefresh == nil {
		return autherr.ErrEngineNotReady
	}
	if err := deps.DeleteRefresh(ctx, uuid); err != nil {
		return autherr.Store(err)
	}

	deps.Observer.emit(ctx, Event{Type: EventLogout, Subject: uuid, Success: true})
	return nil
}
