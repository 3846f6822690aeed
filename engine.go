package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"go.uber.org/zap"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	logger      *zap.Logger
	store       CredentialStore
	provisioner RemoteProvisioner
	notifier    Notifier
	business    BusinessVerifier
	resolvers   map[SocialProvider]SocialEmailResolver
	policies    map[Role]rolePolicy
	codes       *stores.CodeStore
	refresh     *refresh.Store
	hasher      *password.Hasher
	jwtManager  *jwt.Manager
	validator   validator
	audit       *auditDispatcher
	metrics     *Metrics
	newUUID     func() string
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.codes != nil && e.refresh != nil && e.jwtManager != nil
}

// Login authenticates a password principal of role. Unknown emails and
// principals of another role both yield ErrPrincipalNotFound. The fifth
// consecutive failure locks the account for good and sends a lockout notice.
func (e *Engine) Login(ctx context.Context, role Role, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	tokens, err := flows.RunLogin(ctx, string(role), flows.NormalizeEmail(email), password, e.loginDeps())
	if err != nil {
		return nil, err
	}
	return loginResult(tokens), nil
}

// Logout revokes the refresh token of externalUUID. Access tokens stay
// valid until they expire.
func (e *Engine) Logout(ctx context.Context, externalUUID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, externalUUID, flows.LogoutDeps{
		DeleteRefresh: e.refresh.Delete,
		Observer:      e.observer(),
	})
}

// Refresh exchanges the live refresh token for a new pair. The presented
// token is invalidated; presenting it again fails with ErrRefreshInvalid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	tokens, err := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		Store:        principalStore{e.store},
		ParseRefresh: e.parseRefresh,
		Rotate: func(ctx context.Context, uuid, current, next string) error {
			err := e.refresh.Rotate(ctx, uuid, current, next, e.config.JWT.RefreshTTL)
			if errors.Is(err, refresh.ErrTokenMismatch) {
				return fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
			}
			return err
		},
		DeleteRefresh: e.refresh.Delete,
		Session:       e.sessionDeps(),
		Observer:      e.observer(),
	})
	if err != nil {
		return nil, err
	}
	return loginResult(tokens), nil
}

func (e *Engine) parseRefresh(token string) (string, string, error) {
	claims, status, err := e.jwtManager.Parse(token, jwt.TokenRefresh)
	if status == jwt.StatusExpired {
		return "", "", fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	if err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Role, nil
}

// ValidateAccess verifies an access token and returns its claims. Expired
// tokens fail with ErrTokenExpired, everything else with ErrTokenInvalid.
func (e *Engine) ValidateAccess(token string) (*Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, status, err := e.jwtManager.Parse(token, jwt.TokenAccess)
	switch {
	case status == jwt.StatusExpired:
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	role := Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	out := &Claims{Subject: claims.Subject, Role: role}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// TokenStatus classifies an access token without returning its claims.
func (e *Engine) TokenStatus(token string) TokenStatus {
	if e == nil || e.jwtManager == nil {
		return TokenInvalid
	}
	switch e.jwtManager.Validate(token) {
	case jwt.StatusValid:
		return TokenValid
	case jwt.StatusExpired:
		return TokenExpired
	default:
		return TokenInvalid
	}
}

// IsEmailTaken reports whether any principal uses email. The answer is
// advisory; registration still relies on the store's unique index.
func (e *Engine) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	taken, err := e.store.ExistsByEmail(ctx, flows.NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return taken, nil
}

// EmailByUUID returns the e-mail of the principal with externalUUID.
func (e *Engine) EmailByUUID(ctx context.Context, externalUUID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	p, found, err := e.store.FindByUUID(ctx, externalUUID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !found {
		return "", ErrPrincipalNotFound
	}
	return p.Email, nil
}

func (e *Engine) loginDeps() flows.LoginDeps {
	return flows.LoginDeps{
		Store: principalStore{e.store},
		Failures: func(role string) (flows.FailureCounter, bool) {
			p, ok := e.policies[Role(role)]
			if !ok {
				return nil, false
			}
			return p.login, true
		},
		VerifyPassword: e.verifyPassword,
		NotifyLockout:  e.notifyLockout,
		Session:        e.sessionDeps(),
		Observer:       e.observer(),
		Logger:         e.logger,
	}
}

func (e *Engine) verifyPassword(plain, encodedHash string) (bool, error) {
	ok, err := e.hasher.Verify(plain, encodedHash)
	if ok && e.hasher.NeedsRehash(encodedHash) {
		e.logger.Debug("password hash uses outdated parameters")
	}
	return ok, err
}

func (e *Engine) notifyLockout(ctx context.Context, p flows.Principal) {
	name, err := e.provisioner.FindDisplayName(ctx, Role(p.Role), p.Email)
	if err != nil {
		e.logger.Warn("display name lookup failed",
			zap.String("external_uuid", p.ExternalUUID),
			zap.Error(err),
		)
		name = ""
	}

	if err := e.notifier.SendLockoutNotice(ctx, p.Email, name); err != nil {
		e.logger.Warn("lockout notice failed",
			zap.String("external_uuid", p.ExternalUUID),
			zap.Error(err),
		)
		e.emit(ctx, flows.Event{
			Type:    flows.EventLockoutNoticeFailed,
			Role:    p.Role,
			Subject: p.ExternalUUID,
			Err:     err,
		})
	}
}

func (e *Engine) sessionDeps() flows.SessionDeps {
	return flows.SessionDeps{
		IssueAccess:  e.jwtManager.IssueAccess,
		IssueRefresh: e.jwtManager.IssueRefresh,
		SaveRefresh: func(ctx context.Context, uuid, token string) error {
			return e.refresh.Save(ctx, uuid, token, e.config.JWT.RefreshTTL)
		},
	}
}

func loginResult(t flows.SessionTokens) *LoginResult {
	return &LoginResult{
		ExternalUUID: t.ExternalUUID,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
}

// principalStore adapts a CredentialStore to the flows' view of principals.
type principalStore struct {
	s CredentialStore
}

func (a principalStore) Save(ctx context.Context, p flows.Principal) (flows.Principal, error) {
	saved, err := a.s.Save(ctx, fromFlowPrincipal(p))
	if err != nil {
		return flows.Principal{}, err
	}
	return toFlowPrincipal(saved), nil
}

func (a principalStore) FindByEmail(ctx context.Context, email string) (flows.Principal, bool, error) {
	p, found, err := a.s.FindByEmail(ctx, email)
	if err != nil || !found {
		return flows.Principal{}, false, err
	}
	return toFlowPrincipal(p), true, nil
}

func (a principalStore) FindByUUID(ctx context.Context, uuid string) (flows.Principal, bool, error) {
	p, found, err := a.s.FindByUUID(ctx, uuid)
	if err != nil || !found {
		return flows.Principal{}, false, err
	}
	return toFlowPrincipal(p), true, nil
}

func (a principalStore) DeleteByID(ctx context.Context, id int64) error {
	return a.s.DeleteByID(ctx, id)
}

func (a principalStore) Lock(ctx context.Context, id int64) error {
	return a.s.Lock(ctx, id)
}

func toFlowPrincipal(p Principal) flows.Principal {
	return flows.Principal{
		ID:             p.ID,
		ExternalUUID:   p.ExternalUUID,
		Email:          p.Email,
		PasswordHash:   p.PasswordHash,
		Role:           string(p.Role),
		LoginType:      string(p.LoginType),
		SocialProvider: string(p.SocialProvider),
		Locked:         p.AccountLocked,
	}
}

func fromFlowPrincipal(p flows.Principal) Principal {
	return Principal{
		ID:             p.ID,
		ExternalUUID:   p.ExternalUUID,
		Email:          p.Email,
		PasswordHash:   p.PasswordHash,
		Role:           Role(p.Role),
		LoginType:      LoginType(p.LoginType),
		SocialProvider: SocialProvider(p.SocialProvider),
		AccountLocked:  p.Locked,
	}
}
