package flows

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	LoginTypePassword = "PASSWORD"
	LoginTypeSocial   = "SOCIAL"
	ProviderNone      = "NONE"
)

// Principal is the flow-local view of a stored principal.
type Principal struct {
	ID             int64
	ExternalUUID   string
	Email          string
	PasswordHash   string
	Role           string
	LoginType      string
	SocialProvider string
	Locked         bool
}

// PrincipalStore is the durable principal store as seen by the flows.
// Lookups report absence through the found flag.
type PrincipalStore interface {
	Save(ctx context.Context, p Principal) (Principal, error)
	FindByEmail(ctx context.Context, email string) (Principal, bool, error)
	FindByUUID(ctx context.Context, uuid string) (Principal, bool, error)
	DeleteByID(ctx context.Context, id int64) error
	Lock(ctx context.Context, id int64) error
}

// Event is a flow outcome reported to audit and metrics.
type Event struct {
	Type     string
	Role     string
	Subject  string
	Success  bool
	Err      error
	Metadata map[string]string
}

const (
	EventLoginSuccess              = "login_success"
	EventLoginFailure              = "login_failure"
	EventLoginNotFound             = "login_not_found"
	EventLoginLockedRejected       = "login_locked_rejected"
	EventAccountLocked             = "account_locked"
	EventLockoutNoticeFailed       = "lockout_notice_failed"
	EventLogout                    = "logout"
	EventRefreshSuccess            = "refresh_success"
	EventRefreshFailure            = "refresh_failure"
	EventVerificationIssued        = "verification_issued"
	EventVerificationAlreadySent   = "verification_already_sent"
	EventVerificationDeliveryFail  = "verification_delivery_failed"
	EventVerificationConfirmed     = "verification_confirmed"
	EventVerificationMismatch      = "verification_mismatch"
	EventVerificationBlocked       = "verification_blocked"
	EventRegistrationCreated       = "registration_created"
	EventRegistrationDuplicate     = "registration_duplicate"
	EventRegistrationCompensated   = "registration_compensated"
	EventRegistrationCompensateErr = "registration_compensation_failed"
	EventSocialLogin               = "social_login"
)

// Observer receives flow events. A nil Emit is ignored.
type Observer struct {
	Emit func(context.Context, Event)
}

func (o Observer) emit(ctx context.Context, ev Event) {
	if o.Emit != nil {
		o.Emit(ctx, ev)
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
