package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
)

// Register creates a password user. The verification code must have been
// issued for the same e-mail; it is consumed once the user service has
// accepted the profile. If the user service fails, the stored principal is
// deleted again and the error matches ErrRemoteProvisioningFailed.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() || e.provisioner == nil {
		return nil, ErrEngineNotReady
	}
	req.Email = flows.NormalizeEmail(req.Email)
	if err := e.validator.registration(req); err != nil {
		return nil, err
	}
	defer e.observeRegistration(time.Now())

	profile := UserProfile{Email: req.Email, Name: req.Name, Phone: req.Phone}
	p, err := flows.RunRegistration(ctx, flows.RegistrationInput{
		Role:      string(RoleUser),
		Email:     req.Email,
		Password:  req.Password,
		Code:      req.Code,
		LoginType: flows.LoginTypePassword,
	}, e.registrationDeps(nil, func(ctx context.Context, p flows.Principal) error {
		return e.provisioner.RegisterUser(ctx, p.ExternalUUID, profile)
	}))
	if err != nil {
		return nil, err
	}
	return &RegisterResult{ExternalUUID: p.ExternalUUID}, nil
}

// RegisterHost creates a password host. The business registration number
// is checked with the registry before anything is stored.
func (e *Engine) RegisterHost(ctx context.Context, req HostRegisterRequest) (*RegisterResult, error) {
	if !e.ready() || e.provisioner == nil || e.business == nil {
		return nil, ErrEngineNotReady
	}
	req.Email = flows.NormalizeEmail(req.Email)
	if err := e.validator.hostRegistration(req); err != nil {
		return nil, err
	}
	defer e.observeRegistration(time.Now())

	profile := HostProfile{
		Name:            req.Name,
		Phone:           req.Phone,
		BusinessNumber:  normalizeBusinessNumber(req.BusinessNumber),
		BankName:        req.BankName,
		AccountNumber:   req.AccountNumber,
		SettlementCycle: req.SettlementCycle,
	}
	precheck := func(ctx context.Context) error {
		err := e.business.VerifyBusinessNumber(ctx, profile.BusinessNumber)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrBusinessNumberInvalid):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrExternalVerificationFailed, err)
		}
	}

	p, err := flows.RunRegistration(ctx, flows.RegistrationInput{
		Role:      string(RoleHost),
		Email:     req.Email,
		Password:  req.Password,
		Code:      req.Code,
		LoginType: flows.LoginTypePassword,
	}, e.registrationDeps(precheck, func(ctx context.Context, p flows.Principal) error {
		return e.provisioner.RegisterHost(ctx, p.ExternalUUID, profile)
	}))
	if err != nil {
		return nil, err
	}
	return &RegisterResult{ExternalUUID: p.ExternalUUID}, nil
}

// SocialLogin logs in with a provider access token. A first login creates
// the user, without password or verification code; Created reports that.
// An existing user with the resolved email is logged in whatever its login
// type, so a password account is reachable through a provider that vouches
// for the same email. Host emails and locked users are rejected.
func (e *Engine) SocialLogin(ctx context.Context, req SocialLoginRequest) (*SocialLoginResult, error) {
	if !e.ready() || e.provisioner == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.validator.socialName(req.Name); err != nil {
		return nil, err
	}

	res, err := flows.RunSocialLogin(ctx, string(req.Provider), req.AccessToken, flows.SocialDeps{
		Store: principalStore{e.store},
		Resolver: func(provider string) (flows.EmailResolver, bool) {
			r, ok := e.resolvers[SocialProvider(provider)]
			if !ok {
				return nil, false
			}
			return r, true
		},
		Register: func(ctx context.Context, in flows.RegistrationInput) (flows.Principal, error) {
			defer e.observeRegistration(time.Now())
			return flows.RunRegistration(ctx, in, e.registrationDeps(nil, func(ctx context.Context, p flows.Principal) error {
				return e.provisioner.RegisterSocialUser(ctx, p.ExternalUUID, req.Name)
			}))
		},
		Session:  e.sessionDeps(),
		Observer: e.observer(),
	})
	if err != nil {
		return nil, err
	}

	return &SocialLoginResult{
		LoginResult: *loginResult(res.SessionTokens),
		Created:     res.Created,
	}, nil
}

func (e *Engine) registrationDeps(precheck func(context.Context) error, provision func(context.Context, flows.Principal) error) flows.RegistrationDeps {
	vd := e.verificationDeps()
	return flows.RegistrationDeps{
		Store: principalStore{e.store},
		Redeem: func(ctx context.Context, role, email, code string) error {
			return flows.RunRedeemCode(ctx, role, email, code, vd)
		},
		ConsumeCode: func(ctx context.Context, role, email string) error {
			return flows.ConsumeCode(ctx, role, email, vd)
		},
		PreCheck:            precheck,
		HashPassword:        e.hasher.Hash,
		NewUUID:             e.newUUID,
		Provision:           provision,
		CompensationTimeout: e.config.Registration.CompensationTimeout,
		Observer:            e.observer(),
		Logger:              e.logger,
	}
}

func (e *Engine) observeRegistration(start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRegistrationLatency, time.Since(start))
	}
}
