package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/internal/autherr"
)

// ErrorKind classifies engine errors for transport mapping.
type ErrorKind = autherr.Kind

const (
	KindUnknown                = autherr.KindUnknown
	KindNotFound               = autherr.KindNotFound
	KindConflict               = autherr.KindConflict
	KindPolicyDenied           = autherr.KindPolicyDenied
	KindValidationFailed       = autherr.KindValidationFailed
	KindRemoteDependencyFailed = autherr.KindRemoteDependencyFailed
	KindStoreUnavailable       = autherr.KindStoreUnavailable
)

var (
	// ErrEngineNotReady is returned by a nil or half-built Engine.
	ErrEngineNotReady = autherr.ErrEngineNotReady

	ErrPrincipalNotFound        = autherr.ErrPrincipalNotFound
	ErrVerificationCodeNotFound = autherr.ErrVerificationCodeNotFound

	ErrEmailAlreadyExists = autherr.ErrEmailAlreadyExists
	// ErrPrincipalConflict is a uniqueness violation on a field other than
	// email, in practice an external UUID collision.
	ErrPrincipalConflict = autherr.ErrPrincipalConflict
	ErrDuplicateKey      = autherr.ErrDuplicateKey

	ErrAccountLocked = autherr.ErrAccountLocked
	// ErrVerificationBlocked and ErrVerificationAlreadySent carry the
	// remaining time; see RetryAfter.
	ErrVerificationBlocked     = autherr.ErrVerificationBlocked
	ErrVerificationAlreadySent = autherr.ErrVerificationAlreadySent

	ErrInvalidPassword          = autherr.ErrInvalidPassword
	ErrPasswordLoginUnavailable = autherr.ErrPasswordLoginUnavailable
	ErrVerificationMismatch     = autherr.ErrVerificationMismatch
	ErrInvalidVerificationCode  = autherr.ErrInvalidVerificationCode
	ErrRegistrationInvalid      = autherr.ErrRegistrationInvalid
	ErrInvalidSettlementCycle   = autherr.ErrInvalidSettlementCycle
	ErrBusinessNumberInvalid    = autherr.ErrBusinessNumberInvalid
	ErrUnsupportedProvider      = autherr.ErrUnsupportedProvider
	ErrInvalidRole              = autherr.ErrInvalidRole
	ErrTokenExpired             = autherr.ErrTokenExpired
	ErrTokenInvalid             = autherr.ErrTokenInvalid
	ErrRefreshInvalid           = autherr.ErrRefreshInvalid

	ErrRemoteProvisioningFailed   = autherr.ErrRemoteProvisioningFailed
	ErrCompensationFailed         = autherr.ErrCompensationFailed
	ErrExternalVerificationFailed = autherr.ErrExternalVerificationFailed
	ErrVerificationDeliveryFailed = autherr.ErrVerificationDeliveryFailed

	ErrStoreUnavailable = autherr.ErrStoreUnavailable
)

// PolicyError is a policy denial carrying the time until retry.
type PolicyError = autherr.PolicyError

// DuplicateKeyError is returned by credential stores for uniqueness
// violations. It matches ErrDuplicateKey.
type DuplicateKeyError = autherr.DuplicateKeyError

// KindOf returns the error kind of err.
func KindOf(err error) ErrorKind {
	return autherr.KindOf(err)
}

// RetryAfter returns how long the caller should wait before retrying a
// policy-denied request.
func RetryAfter(err error) (time.Duration, bool) {
	return autherr.RetryAfterOf(err)
}
