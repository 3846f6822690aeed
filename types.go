package authcore

import (
	"context"
	"time"
)

// Role discriminates principals. Users and hosts share one record shape
// and differ only in policy tables and remote profile.
type Role string

const (
	RoleUser Role = "user"
	RoleHost Role = "host"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleHost
}

// ParseRole converts s to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// LoginType is how a principal authenticates.
type LoginType string

const (
	LoginTypePassword LoginType = "PASSWORD"
	LoginTypeSocial   LoginType = "SOCIAL"
)

// SocialProvider names an external identity provider.
type SocialProvider string

const (
	ProviderNone  SocialProvider = "NONE"
	ProviderKakao SocialProvider = "KAKAO"
)

// Principal is one user or host identity record.
//
// PasswordHash is empty exactly when LoginType is LoginTypeSocial. ID is
// assigned by the store and never leaves the service; ExternalUUID is the
// only identifier shared with other services.
type Principal struct {
	ID             int64
	ExternalUUID   string
	Email          string
	PasswordHash   string
	Role           Role
	LoginType      LoginType
	SocialProvider SocialProvider
	AccountLocked  bool
	CreatedAt      time.Time
}

// CredentialStore persists principals. Implementations must enforce unique
// email and external UUID at the storage layer and report violations with
// an error matching [ErrDuplicateKey] (see [DuplicateKeyError]).
type CredentialStore interface {
	Save(ctx context.Context, p Principal) (Principal, error)
	FindByEmail(ctx context.Context, email string) (Principal, bool, error)
	FindByUUID(ctx context.Context, externalUUID string) (Principal, bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	DeleteByID(ctx context.Context, id int64) error
	Lock(ctx context.Context, id int64) error
}

// UserProfile holds the profile fields sent to the user service.
type UserProfile struct {
	Email string
	Name  string
	Phone string
}

// HostProfile holds the profile fields sent to the host service.
type HostProfile struct {
	Name            string
	Phone           string
	BusinessNumber  string
	BankName        string
	AccountNumber   string
	SettlementCycle int
}

// RemoteProvisioner creates remote profiles for new principals.
type RemoteProvisioner interface {
	RegisterUser(ctx context.Context, externalUUID string, profile UserProfile) error
	RegisterSocialUser(ctx context.Context, externalUUID, name string) error
	RegisterHost(ctx context.Context, externalUUID string, profile HostProfile) error
	// FindDisplayName is used only to personalize the lockout notice.
	FindDisplayName(ctx context.Context, role Role, email string) (string, error)
}

// Notifier delivers e-mails. A lockout notice failure never affects the lock.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendLockoutNotice(ctx context.Context, email, name string) error
}

// BusinessVerifier checks a business registration number with the national
// registry. It returns an error matching [ErrBusinessNumberInvalid] for
// unknown or closed businesses and any other error for API failures.
type BusinessVerifier interface {
	VerifyBusinessNumber(ctx context.Context, number string) error
}

// SocialEmailResolver exchanges a provider access token for the account's
// e-mail address.
type SocialEmailResolver interface {
	ResolveEmail(ctx context.Context, accessToken string) (string, error)
}

// RegisterRequest is a password registration for a user.
type RegisterRequest struct {
	Email    string
	Password string
	Code     string
	Name     string
	Phone    string
}

// HostRegisterRequest is a password registration for a host.
type HostRegisterRequest struct {
	Email           string
	Password        string
	Code            string
	Name            string
	Phone           string
	BusinessNumber  string
	BankName        string
	AccountNumber   string
	SettlementCycle int
}

// RegisterResult is returned for a created principal.
type RegisterResult struct {
	ExternalUUID string
}

// LoginResult carries a fresh token pair.
type LoginResult struct {
	ExternalUUID string
	AccessToken  string
	RefreshToken string
}

// SocialLoginRequest logs in with a provider access token. Name is sent to
// the user service when the principal is created.
type SocialLoginRequest struct {
	Provider    SocialProvider
	AccessToken string
	Name        string
}

// SocialLoginResult is a LoginResult plus whether the principal was created.
type SocialLoginResult struct {
	LoginResult
	Created bool
}

// Claims are the verified claims of an access token. They are returned to
// the caller and passed on explicitly.
type Claims struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenStatus is the outcome of validating a token.
type TokenStatus int

const (
	TokenInvalid TokenStatus = iota
	TokenValid
	TokenExpired
)

func (s TokenStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}
