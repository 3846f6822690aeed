package authcore

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/password"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Login         LoginConfig
	Verification  VerificationConfig
	Registration  RegistrationConfig
	Password      PasswordConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Keys          KeyConfig
	RoleOverrides map[Role]RoleOverride
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures HS256 token issuance.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SigningKey is the active HMAC key, at least 32 bytes.
	SigningKey []byte
	KeyID      string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	// VerifyKeys are accepted for verification by kid during key rotation.
	VerifyKeys map[string][]byte
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig configures the failure counter in front of the persistent
// lock. The window only expires the counter; a set lock never expires.
type LoginConfig struct {
	MaxFailures   int
	FailureWindow time.Duration
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig configures e-mail verification codes.
type VerificationConfig struct {
	CodeTTL    time.Duration
	CodeDigits int
	// MaxFailures mismatches are tolerated; the next one blocks.
	MaxFailures   int
	FailureWindow time.Duration
	BlockDuration time.Duration
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig defines a public type used by authcore APIs.
//
// RegistrationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationConfig struct {
	// CompensationTimeout bounds the principal delete after a provisioning
	// failure. It applies even when the request context is already done.
	CompensationTimeout time.Duration
	SettlementCycles    []int
	// PhoneRegion is the default region for phone number parsing.
	PhoneRegion string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// AcceptLegacyBcrypt verifies bcrypt hashes written before the argon2id
	// migration. New hashes are always argon2id.
	AcceptLegacyBcrypt bool
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
KEY CONFIG
====================================
*/

// KeyConfig holds Redis key prefixes. Role-scoped prefixes get "{role}:"
// appended, so the login counter for a user lives at
// LoginFailurePrefix + "user:" + email.
type KeyConfig struct {
	LoginFailurePrefix     string
	VerifyFailurePrefix    string
	VerifyBlockPrefix      string
	VerificationCodePrefix string
	RefreshPrefix          string
}

// RoleOverride replaces failure limits for one role. Zero fields keep the
// global value.
type RoleOverride struct {
	LoginMaxFailures        int
	VerificationMaxFailures int
}

const (
	minRefreshTTL = 7 * 24 * time.Hour
	maxRefreshTTL = 14 * 24 * time.Hour
)

// DefaultConfig returns the production defaults. JWT.SigningKey must still
// be set.
func DefaultConfig() Config {
	argon := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Login: LoginConfig{
			MaxFailures:   5,
			FailureWindow: 15 * time.Minute,
		},
		Verification: VerificationConfig{
			CodeTTL:       3 * time.Minute,
			CodeDigits:    6,
			MaxFailures:   5,
			FailureWindow: 10 * time.Minute,
			BlockDuration: 10 * time.Minute,
		},
		Registration: RegistrationConfig{
			CompensationTimeout: 5 * time.Second,
			SettlementCycles:    []int{15, 30},
			PhoneRegion:         "KR",
		},
		Password: PasswordConfig{
			Memory:             argon.Memory,
			Time:               argon.Time,
			Parallelism:        argon.Parallelism,
			SaltLength:         argon.SaltLength,
			KeyLength:          argon.KeyLength,
			MaxPasswordBytes:   argon.MaxPasswordBytes,
			AcceptLegacyBcrypt: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Keys: KeyConfig{
			LoginFailurePrefix:     "login:fail:",
			VerifyFailurePrefix:    "verify:fail:",
			VerifyBlockPrefix:      "verify:block:",
			VerificationCodePrefix: "email:verification:code:",
			RefreshPrefix:          "refresh:",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Registration.SettlementCycles = slices.Clone(cfg.Registration.SettlementCycles)
	if cfg.RoleOverrides != nil {
		out.RoleOverrides = make(map[Role]RoleOverride, len(cfg.RoleOverrides))
		for role, o := range cfg.RoleOverrides {
			out.RoleOverrides[role] = o
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cfg for values the engine cannot run with.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL < minRefreshTTL || c.JWT.RefreshTTL > maxRefreshTTL {
		return fmt.Errorf("JWT RefreshTTL must be between %s and %s", minRefreshTTL, maxRefreshTTL)
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if len(c.JWT.SigningKey) < 32 {
		return errors.New("JWT SigningKey must be at least 32 bytes")
	}
	if len(c.JWT.VerifyKeys) > 0 && c.JWT.KeyID == "" {
		return errors.New("JWT KeyID is required when VerifyKeys are set")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > time.Minute {
		return errors.New("JWT Leeway must be between 0 and 1m")
	}

	// Login
	if c.Login.MaxFailures <= 0 {
		return errors.New("Login MaxFailures must be > 0")
	}
	if c.Login.FailureWindow <= 0 {
		return errors.New("Login FailureWindow must be > 0")
	}

	// Verification
	if c.Verification.CodeTTL <= 0 {
		return errors.New("Verification CodeTTL must be > 0")
	}
	if c.Verification.CodeDigits < 6 || c.Verification.CodeDigits > 10 {
		return errors.New("Verification CodeDigits must be between 6 and 10")
	}
	if c.Verification.MaxFailures <= 0 {
		return errors.New("Verification MaxFailures must be > 0")
	}
	if c.Verification.FailureWindow <= 0 {
		return errors.New("Verification FailureWindow must be > 0")
	}
	if c.Verification.BlockDuration <= 0 {
		return errors.New("Verification BlockDuration must be > 0")
	}

	// Registration
	if c.Registration.CompensationTimeout <= 0 {
		return errors.New("Registration CompensationTimeout must be > 0")
	}
	if len(c.Registration.SettlementCycles) == 0 {
		return errors.New("Registration SettlementCycles must not be empty")
	}
	for _, cycle := range c.Registration.SettlementCycles {
		if cycle < 1 || cycle > 31 {
			return fmt.Errorf("Registration settlement cycle %d out of range", cycle)
		}
	}
	if len(c.Registration.PhoneRegion) != 2 {
		return errors.New("Registration PhoneRegion must be a two-letter region code")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Keys
	prefixes := []string{
		c.Keys.LoginFailurePrefix,
		c.Keys.VerifyFailurePrefix,
		c.Keys.VerifyBlockPrefix,
		c.Keys.VerificationCodePrefix,
		c.Keys.RefreshPrefix,
	}
	seen := make(map[string]struct{}, len(prefixes))
	for _, p := range prefixes {
		if strings.TrimSpace(p) == "" {
			return errors.New("Keys prefixes must not be empty")
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("Keys prefix %q is used twice", p)
		}
		seen[p] = struct{}{}
	}

	// Role overrides
	for role, o := range c.RoleOverrides {
		if !role.Valid() {
			return fmt.Errorf("RoleOverrides: unknown role %q", role)
		}
		if o.LoginMaxFailures < 0 || o.VerificationMaxFailures < 0 {
			return fmt.Errorf("RoleOverrides[%s]: limits must be >= 0", role)
		}
	}

	return nil
}
