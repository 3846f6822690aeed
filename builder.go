package authcore

import (
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *zap.Logger

	store       CredentialStore
	provisioner RemoteProvisioner
	notifier    Notifier
	business    BusinessVerifier
	resolvers   map[SocialProvider]SocialEmailResolver
	auditSink   AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		resolvers: make(map[SocialProvider]SocialEmailResolver),
	}
}

// WithConfig replaces the whole configuration. The builder keeps a copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for counters, verification codes and
// refresh tokens. Cluster and sentinel clients are accepted.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithProvisioner(p RemoteProvisioner) *Builder {
	b.provisioner = p
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithBusinessVerifier enables host registration. Without it RegisterHost
// returns ErrEngineNotReady.
func (b *Builder) WithBusinessVerifier(v BusinessVerifier) *Builder {
	b.business = v
	return b
}

// WithSocialResolver registers the e-mail resolver for provider.
func (b *Builder) WithSocialResolver(provider SocialProvider, r SocialEmailResolver) *Builder {
	if b.resolvers == nil {
		b.resolvers = make(map[SocialProvider]SocialEmailResolver)
	}
	b.resolvers[SocialProvider(strings.ToUpper(string(provider)))] = r
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not enable auditing by itself; Config.Audit.Enabled must also be set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms has no effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.provisioner == nil {
		return nil, errors.New("remote provisioner required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- REDIS PRIMITIVES --------
	counter := rate.NewCounter(b.redis)
	policies, err := buildRolePolicies(counter, cfg)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHING --------
	argon, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	var legacy []password.Verifier
	if cfg.Password.AcceptLegacyBcrypt {
		legacy = append(legacy, password.Bcrypt{})
	}
	hasher, err := password.NewHasher(argon, legacy...)
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	verifyKeys := make(map[string][]byte, len(cfg.JWT.VerifyKeys))
	for kid, key := range cfg.JWT.VerifyKeys {
		verifyKeys[kid] = cloneBytes(key)
	}
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Key:        cloneBytes(cfg.JWT.SigningKey),
		KeyID:      cfg.JWT.KeyID,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		VerifyKeys: verifyKeys,
	})
	if err != nil {
		return nil, err
	}

	resolvers := make(map[SocialProvider]SocialEmailResolver, len(b.resolvers))
	for provider, r := range b.resolvers {
		if r != nil {
			resolvers[provider] = r
		}
	}

	engine := &Engine{
		config:      cfg,
		logger:      logger,
		store:       b.store,
		provisioner: b.provisioner,
		notifier:    b.notifier,
		business:    b.business,
		resolvers:   resolvers,
		policies:    policies,
		codes:       stores.NewCodeStore(b.redis, cfg.Keys.VerificationCodePrefix),
		refresh:     refresh.NewStore(b.redis, cfg.Keys.RefreshPrefix),
		hasher:      hasher,
		jwtManager:  jm,
		validator:   newValidator(cfg),
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
		newUUID:     uuid.NewString,
	}

	b.built = true

	return engine, nil
}
