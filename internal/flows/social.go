package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/internal/autherr"
)

const socialRole = "user"

// EmailResolver exchanges a provider access token for the account email.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, accessToken string) (string, error)
}

// SocialDeps captures social login dependencies.
type SocialDeps struct {
	Store PrincipalStore
	// Resolver looks up the resolver registered for provider.
	Resolver func(provider string) (EmailResolver, bool)
	// Register runs the registration saga for a new social principal.
	Register func(ctx context.Context, in RegistrationInput) (Principal, error)
	Session  SessionDeps
	Observer Observer
}

// SocialResult is a social login outcome.
type SocialResult struct {
	SessionTokens
	Created bool
}

// RunSocialLogin logs in the principal owning the provider account, creating
// it first when absent.
func RunSocialLogin(ctx context.Context, provider, accessToken string, deps SocialDeps) (SocialResult, error) {
	if deps.Store == nil || deps.Resolver == nil || deps.Register == nil {
		return SocialResult{}, autherr.ErrEngineNotReady
	}
	provider = strings.ToUpper(strings.TrimSpace(provider))
	resolver, ok := deps.Resolver(provider)
	if !ok || resolver == nil {
		return SocialResult{}, fmt.Errorf("%w: %q", autherr.ErrUnsupportedProvider, provider)
	}

	email, err := resolver.ResolveEmail(ctx, accessToken)
	if err != nil {
		return SocialResult{}, fmt.Errorf("%w: %v", autherr.ErrExternalVerificationFailed, err)
	}
	email = NormalizeEmail(email)
	if email == "" {
		return SocialResult{}, fmt.Errorf("%w: provider returned no email", autherr.ErrExternalVerificationFailed)
	}

	p, found, err := deps.Store.FindByEmail(ctx, email)
	if err != nil {
		return SocialResult{}, autherr.Store(err)
	}

	created := false
	if found {
		if p.Role != socialRole {
			return SocialResult{}, autherr.ErrEmailAlreadyExists
		}
		if p.Locked {
			deps.Observer.emit(ctx, Event{Type: EventLoginLockedRejected, Role: p.Role, Subject: p.ExternalUUID, Err: autherr.ErrAccountLocked})
			return SocialResult{}, autherr.ErrAccountLocked
		}
	} else {
		p, err = deps.Register(ctx, RegistrationInput{
			Role:           socialRole,
			Email:          email,
			LoginType:      LoginTypeSocial,
			SocialProvider: provider,
		})
		if err != nil {
			return SocialResult{}, err
		}
		created = true
	}

	tokens, err := issueSession(ctx, p, deps.Session)
	if err != nil {
		return SocialResult{}, err
	}

	deps.Observer.emit(ctx, Event{
		Type:     EventSocialLogin,
		Role:     p.Role,
		Subject:  p.ExternalUUID,
		Success:  true,
		Metadata: map[string]string{"provider": provider, "created": fmt.Sprint(created)},
	})
	return SocialResult{SessionTokens: tokens, Created: created}, nil
}
