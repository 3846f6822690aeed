// Package autherr holds the error sentinels and error-kind taxonomy shared by
// the engine, the flow functions and the public authcore package, which
// re-exports everything here.
//
// # What this package must NOT do
//
//   - Import authcore or any other internal package.
package autherr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for callers that map errors to transport responses.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindPolicyDenied
	KindValidationFailed
	KindRemoteDependencyFailed
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPolicyDenied:
		return "policy_denied"
	case KindValidationFailed:
		return "validation_failed"
	case KindRemoteDependencyFailed:
		return "remote_dependency_failed"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

var (
	ErrEngineNotReady = errors.New("engine not initialized")

	ErrPrincipalNotFound        = errors.New("principal not found")
	ErrVerificationCodeNotFound = errors.New("verification code not found")

	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrPrincipalConflict  = errors.New("principal uniqueness conflict")
	ErrDuplicateKey       = errors.New("duplicate key")

	ErrAccountLocked           = errors.New("account locked")
	ErrVerificationBlocked     = errors.New("verification attempts blocked")
	ErrVerificationAlreadySent = errors.New("verification code already sent")

	ErrInvalidPassword          = errors.New("invalid password")
	ErrPasswordLoginUnavailable = errors.New("principal does not use password login")
	ErrVerificationMismatch     = errors.New("verification code mismatch")
	ErrInvalidVerificationCode  = errors.New("invalid verification code")
	ErrRegistrationInvalid      = errors.New("invalid registration request")
	ErrInvalidSettlementCycle   = errors.New("invalid settlement cycle")
	ErrBusinessNumberInvalid    = errors.New("business registration number invalid")
	ErrUnsupportedProvider      = errors.New("unsupported social provider")
	ErrInvalidRole              = errors.New("invalid role")
	ErrTokenExpired             = errors.New("token expired")
	ErrTokenInvalid             = errors.New("token invalid")
	ErrRefreshInvalid           = errors.New("refresh token invalid")

	ErrRemoteProvisioningFailed   = errors.New("remote provisioning failed")
	ErrCompensationFailed         = errors.New("registration compensation failed")
	ErrExternalVerificationFailed = errors.New("external verification failed")
	ErrVerificationDeliveryFailed = errors.New("verification code delivery failed")

	ErrStoreUnavailable = errors.New("store unavailable")
)

// kindTable is ordered most specific first: wrapped business errors are
// matched before the causes they wrap.
var kindTable = []struct {
	err  error
	kind Kind
}{
	{ErrRemoteProvisioningFailed, KindRemoteDependencyFailed},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrExternalVerificationFailed, KindRemoteDependencyFailed},
	{ErrVerificationDeliveryFailed, KindRemoteDependencyFailed},
	{ErrCompensationFailed, KindRemoteDependencyFailed},
	{ErrAccountLocked, KindPolicyDenied},
	{ErrVerificationBlocked, KindPolicyDenied},
	{ErrVerificationAlreadySent, KindPolicyDenied},
	{ErrEmailAlreadyExists, KindConflict},
	{ErrPrincipalConflict, KindConflict},
	{ErrDuplicateKey, KindConflict},
	{ErrInvalidVerificationCode, KindValidationFailed},
	{ErrInvalidPassword, KindValidationFailed},
	{ErrPasswordLoginUnavailable, KindValidationFailed},
	{ErrVerificationMismatch, KindValidationFailed},
	{ErrRegistrationInvalid, KindValidationFailed},
	{ErrInvalidSettlementCycle, KindValidationFailed},
	{ErrBusinessNumberInvalid, KindValidationFailed},
	{ErrUnsupportedProvider, KindValidationFailed},
	{ErrInvalidRole, KindValidationFailed},
	{ErrTokenExpired, KindValidationFailed},
	{ErrTokenInvalid, KindValidationFailed},
	{ErrRefreshInvalid, KindValidationFailed},
	{ErrPrincipalNotFound, KindNotFound},
	{ErrVerificationCodeNotFound, KindNotFound},
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindUnknown
}

// PolicyError is a policy denial with the time remaining until the caller
// may retry. A zero RetryAfter means no retry time is known.
type PolicyError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *PolicyError) Error() string {
	if e.RetryAfter <= 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (retry after %s)", e.Err.Error(), e.RetryAfter.Round(time.Second))
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}

// Deny wraps sentinel in a [PolicyError].
func Deny(sentinel error, retryAfter time.Duration) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &PolicyError{Err: sentinel, RetryAfter: retryAfter}
}

// RetryAfterOf extracts the retry duration from err.
func RetryAfterOf(err error) (time.Duration, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	return 0, false
}

// Store wraps a storage failure into ErrStoreUnavailable.
func Store(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// DuplicateKeyError reports a uniqueness violation on Field. It matches
// ErrDuplicateKey.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("duplicate key on %s", e.Field)
	}
	return fmt.Sprintf("duplicate key on %s: %v", e.Field, e.Err)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
