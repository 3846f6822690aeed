package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
)

// SendVerificationCode issues a fresh code for (role, email) and e-mails it.
// While a code is live the call fails with ErrVerificationAlreadySent; use
// RetryAfter for the remaining lifetime.
func (e *Engine) SendVerificationCode(ctx context.Context, role Role, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	email = flows.NormalizeEmail(email)
	if err := e.validator.email(email); err != nil {
		return err
	}

	return flows.RunSendVerificationCode(ctx, string(role), email, e.verificationDeps())
}

// VerifyCode confirms code for (role, email). A code verifies once; the
// registration that follows still accepts it until it expires.
func (e *Engine) VerifyCode(ctx context.Context, role Role, email, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	email = flows.NormalizeEmail(email)
	if err := e.validator.email(email); err != nil {
		return err
	}
	if err := e.validator.code(code); err != nil {
		return err
	}

	return flows.RunVerifyCode(ctx, string(role), email, code, e.verificationDeps())
}

func (e *Engine) verificationDeps() flows.VerificationDeps {
	digits := e.config.Verification.CodeDigits
	return flows.VerificationDeps{
		Codes: e.codes,
		Attempts: func(role string) (flows.AttemptBlocker, bool) {
			p, ok := e.policies[Role(role)]
			if !ok {
				return nil, false
			}
			return p.verification, true
		},
		GenerateCode: func() (string, error) {
			return internal.NewOTP(digits)
		},
		Deliver:  e.notifier.SendVerificationCode,
		CodeTTL:  e.config.Verification.CodeTTL,
		Observer: e.observer(),
		Logger:   e.logger,
	}
}
