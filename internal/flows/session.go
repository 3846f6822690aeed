package flows

import (
	"context"
	"fmt"

	"github.com/MrEthical07/authcore/internal/autherr"
)

// SessionTokens is the token pair issued on login, social login and refresh.
type SessionTokens struct {
	ExternalUUID string
	AccessToken  string
	RefreshToken string
}

// SessionDeps issues tokens and stores the refresh token.
type SessionDeps struct {
	IssueAccess  func(subject, role string) (string, error)
	IssueRefresh func(subject, role string) (string, error)
	// SaveRefresh overwrites the live refresh token of uuid.
	SaveRefresh func(ctx context.Context, uuid, token string) error
}

func issueSession(ctx context.Context, p Principal, deps SessionDeps) (SessionTokens, error) {
	access, refresh, err := signPair(p.ExternalUUID, p.Role, deps)
	if err != nil {
		return SessionTokens{}, err
	}
	if err := deps.SaveRefresh(ctx, p.ExternalUUID, refresh); err != nil {
		return SessionTokens{}, autherr.Store(err)
	}

	return SessionTokens{
		ExternalUUID: p.ExternalUUID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func signPair(subject, role string, deps SessionDeps) (string, string, error) {
	access, err := deps.IssueAccess(subject, role)
	if err != nil {
		return "", "", fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := deps.IssueRefresh(subject, role)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return access, refresh, nil
}
