package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/autherr"
	"go.uber.org/zap"
)

const defaultCompensationTimeout = 5 * time.Second

// RegistrationInput is a validated registration request. Code is required
// for password registrations and ignored for social ones.
type RegistrationInput struct {
	Role           string
	Email          string
	Password       string
	Code           string
	LoginType      string
	SocialProvider string
}

// RegistrationDeps captures registration saga dependencies.
type RegistrationDeps struct {
	Store PrincipalStore
	// Redeem checks the verification code without consuming it.
	Redeem func(ctx context.Context, role, email, code string) error
	// ConsumeCode deletes the verification code after a successful saga.
	ConsumeCode func(ctx context.Context, role, email string) error
	// PreCheck runs external checks that must pass before anything is
	// persisted. Optional.
	PreCheck     func(ctx context.Context) error
	HashPassword func(password string) (string, error)
	NewUUID      func() string
	// Provision creates the remote profile for the saved principal.
	Provision           func(ctx context.Context, p Principal) error
	CompensationTimeout time.Duration
	Observer            Observer
	Logger              *zap.Logger
}

// RunRegistration persists a principal and provisions its remote profile.
// When provisioning fails the principal is deleted again and the returned
// error matches ErrRemoteProvisioningFailed, joined with
// ErrCompensationFailed if the delete also failed.
func RunRegistration(ctx context.Context, in RegistrationInput, deps RegistrationDeps) (Principal, error) {
	if deps.Store == nil || deps.NewUUID == nil || deps.Provision == nil {
		return Principal{}, autherr.ErrEngineNotReady
	}
	passwordPath := in.LoginType == LoginTypePassword
	if passwordPath && (deps.Redeem == nil || deps.HashPassword == nil) {
		return Principal{}, autherr.ErrEngineNotReady
	}

	if passwordPath {
		if err := deps.Redeem(ctx, in.Role, in.Email, in.Code); err != nil {
			return Principal{}, err
		}
	}

	if deps.PreCheck != nil {
		if err := deps.PreCheck(ctx); err != nil {
			return Principal{}, err
		}
	}

	p := Principal{
		ExternalUUID:   deps.NewUUID(),
		Email:          in.Email,
		Role:           in.Role,
		LoginType:      in.LoginType,
		SocialProvider: in.SocialProvider,
	}
	if passwordPath {
		hash, err := deps.HashPassword(in.Password)
		if err != nil {
			return Principal{}, fmt.Errorf("hash password: %w", err)
		}
		p.PasswordHash = hash
		p.SocialProvider = ProviderNone
	}

	saved, err := deps.Store.Save(ctx, p)
	if err != nil {
		return Principal{}, translateSaveError(ctx, err, in.Role, deps.Observer)
	}

	provErr := ctx.Err()
	if provErr == nil {
		provErr = deps.Provision(ctx, saved)
	}
	if provErr != nil {
		return Principal{}, compensate(ctx, saved, provErr, deps)
	}

	if passwordPath && deps.ConsumeCode != nil {
		if err := deps.ConsumeCode(ctx, in.Role, in.Email); err != nil {
			loggerOrNop(deps.Logger).Warn("verification code consumption failed",
				zap.String("external_uuid", saved.ExternalUUID),
				zap.Error(err),
			)
		}
	}

	deps.Observer.emit(ctx, Event{
		Type:     EventRegistrationCreated,
		Role:     saved.Role,
		Subject:  saved.ExternalUUID,
		Success:  true,
		Metadata: map[string]string{"login_type": saved.LoginType},
	})
	return saved, nil
}

func translateSaveError(ctx context.Context, err error, role string, obs Observer) error {
	var dup *autherr.DuplicateKeyError
	if !errors.As(err, &dup) {
		return autherr.Store(err)
	}

	obs.emit(ctx, Event{
		Type:     EventRegistrationDuplicate,
		Role:     role,
		Err:      err,
		Metadata: map[string]string{"field": dup.Field},
	})
	if dup.Field == "email" {
		return fmt.Errorf("%w: %w", autherr.ErrEmailAlreadyExists, err)
	}
	return fmt.Errorf("%w: %w", autherr.ErrPrincipalConflict, err)
}

func compensate(ctx context.Context, saved Principal, cause error, deps RegistrationDeps) error {
	log := loggerOrNop(deps.Logger)
	provErr := fmt.Errorf("%w: %v", autherr.ErrRemoteProvisioningFailed, cause)

	timeout := deps.CompensationTimeout
	if timeout <= 0 {
		timeout = defaultCompensationTimeout
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := deps.Store.DeleteByID(cctx, saved.ID); err != nil {
		log.Error("registration compensation failed",
			zap.String("external_uuid", saved.ExternalUUID),
			zap.String("email", saved.Email),
			zap.NamedError("provision_error", cause),
			zap.Error(err),
		)
		deps.Observer.emit(ctx, Event{Type: EventRegistrationCompensateErr, Role: saved.Role, Subject: saved.ExternalUUID, Err: err})
		return errors.Join(provErr, fmt.Errorf("%w: %v", autherr.ErrCompensationFailed, err))
	}

	log.Info("registration compensated",
		zap.String("external_uuid", saved.ExternalUUID),
		zap.NamedError("provision_error", cause),
	)
	deps.Observer.emit(ctx, Event{Type: EventRegistrationCompensated, Role: saved.Role, Subject: saved.ExternalUUID, Err: cause})
	return provErr
}
