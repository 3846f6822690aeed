package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minKeyBytes = 32

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	// TokenAccess marks short-lived bearer tokens.
	TokenAccess TokenType = "access"
	// TokenRefresh marks long-lived tokens exchanged for new sessions.
	TokenRefresh TokenType = "refresh"
)

// Status is the outcome of validating a token.
type Status int

const (
	// StatusInvalid covers malformed tokens, bad signatures, wrong type and
	// claim failures other than expiry.
	StatusInvalid Status = iota
	// StatusValid means the token verified and has not expired.
	StatusValid
	// StatusExpired means the token verified but its expiration has passed.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

var (
	// ErrExpired is returned by Parse for verified but expired tokens.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned by Parse for every other rejection.
	ErrInvalid = errors.New("token invalid")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Key is the active HS256 signing key.
	Key      []byte
	KeyID    string
	Issuer   string
	Audience string
	Leeway   time.Duration
	// VerifyKeys holds keys accepted for verification by kid, including
	// retired keys during rotation. When set, KeyID must be present.
	VerifyKeys map[string][]byte
	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

// Claims are the claims carried by access and refresh tokens.
type Claims struct {
	Role string    `json:"rol"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Manager defines a public type used by authcore APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager returns an error when TTLs, leeway or keys are unusable.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Key) < minKeyBytes {
		return nil, fmt.Errorf("hs256 key must be at least %d bytes", minKeyBytes)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < minKeyBytes {
			return nil, fmt.Errorf("verify key for kid %q is too short", kid)
		}
	}
	if len(cfg.VerifyKeys) > 0 {
		if cfg.KeyID == "" {
			return nil, errors.New("KeyID is required with VerifyKeys")
		}
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess describes the issueaccess operation and its observable behavior.
//
// IssueAccess signs an access token for subject (an external UUID) and role.
func (m *Manager) IssueAccess(subject, role string) (string, error) {
	return m.issue(subject, role, TokenAccess, m.config.AccessTTL)
}

// IssueRefresh signs a refresh token for subject and role.
func (m *Manager) IssueRefresh(subject, role string) (string, error) {
	return m.issue(subject, role, TokenRefresh, m.config.RefreshTTL)
}

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration {
	return m.config.RefreshTTL
}

func (m *Manager) issue(subject, role string, typ TokenType, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject is required")
	}

	now := m.config.Now()
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	return token.SignedString(m.config.Key)
}

// Validate reports whether token is a valid, expired or invalid access token.
func (m *Manager) Validate(token string) Status {
	_, status, _ := m.Parse(token, TokenAccess)
	return status
}

// ExtractSubject returns the subject of a valid access token.
func (m *Manager) ExtractSubject(token string) (string, error) {
	claims, _, err := m.Parse(token, TokenAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse verifies token and checks that it has type want. Errors wrap
// [ErrExpired] or [ErrInvalid] to match the returned status.
func (m *Manager) Parse(tokenStr string, want TokenType) (*Claims, Status, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, StatusExpired, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, StatusInvalid, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, StatusInvalid, ErrInvalid
	}
	if claims.Type != want {
		return nil, StatusInvalid, fmt.Errorf("%w: unexpected token type %q", ErrInvalid, claims.Type)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, StatusInvalid, fmt.Errorf("%w: missing subject", ErrInvalid)
	}

	return claims, StatusValid, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return m.config.Key, nil
}
