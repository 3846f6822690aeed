package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testPhone = "010-1234-5678"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "authcore-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type harness struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	store    *memCredentialStore
	prov     *fakeProvisioner
	notifier *fakeNotifier
	business *fakeBusiness
	kakao    *fakeResolver
}

func newHarness(t testing.TB, mutators ...func(*Config)) *harness {
	t.Helper()
	return newHarnessWithSink(t, nil, mutators...)
}

func newHarnessWithSink(t testing.TB, sink AuditSink, mutators ...func(*Config)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, m := range mutators {
		m(&cfg)
	}

	h := &harness{
		mr:       mr,
		rdb:      rdb,
		store:    newMemCredentialStore(),
		prov:     newFakeProvisioner(),
		notifier: newFakeNotifier(),
		business: &fakeBusiness{},
		kakao:    &fakeResolver{},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(h.store).
		WithProvisioner(h.prov).
		WithNotifier(h.notifier).
		WithBusinessVerifier(h.business).
		WithSocialResolver(ProviderKakao, h.kakao).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine

	return h
}

func (h *harness) seedUser(t testing.TB, email, password string) Principal {
	t.Helper()
	return h.seed(t, RoleUser, email, password)
}

func (h *harness) seed(t testing.TB, role Role, email, password string) Principal {
	t.Helper()

	hash, err := h.engine.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	p, err := h.store.Save(context.Background(), Principal{
		ExternalUUID:   uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		LoginType:      LoginTypePassword,
		SocialProvider: ProviderNone,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return p
}

// issueCode sends a verification code and returns it as delivered.
func (h *harness) issueCode(t testing.TB, role Role, email string) string {
	t.Helper()

	if err := h.engine.SendVerificationCode(context.Background(), role, email); err != nil {
		t.Fatalf("SendVerificationCode failed: %v", err)
	}
	code, ok := h.notifier.code(email)
	if !ok {
		t.Fatal("expected a delivered code")
	}
	return code
}

func wrongCode(code string) string {
	if strings.HasPrefix(code, "0") {
		return "1" + code[1:]
	}
	return "0" + code[1:]
}

type memCredentialStore struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]Principal
	saveErr error
	delErr  error
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{byID: make(map[int64]Principal)}
}

func (s *memCredentialStore) Save(_ context.Context, p Principal) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return Principal{}, s.saveErr
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	for _, existing := range s.byID {
		if existing.Email == p.Email {
			return Principal{}, &DuplicateKeyError{Field: "email"}
		}
		if existing.ExternalUUID == p.ExternalUUID {
			return Principal{}, &DuplicateKeyError{Field: "external_uuid"}
		}
	}
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = time.Now()
	s.byID[p.ID] = p
	return p, nil
}

func (s *memCredentialStore) FindByEmail(_ context.Context, email string) (Principal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range s.byID {
		if p.Email == email {
			return p, true, nil
		}
	}
	return Principal{}, false, nil
}

func (s *memCredentialStore) FindByUUID(_ context.Context, externalUUID string) (Principal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.byID {
		if p.ExternalUUID == externalUUID {
			return p, true, nil
		}
	}
	return Principal{}, false, nil
}

func (s *memCredentialStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, found, err := s.FindByEmail(ctx, email)
	return found, err
}

func (s *memCredentialStore) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delErr != nil {
		return s.delErr
	}
	delete(s.byID, id)
	return nil
}

func (s *memCredentialStore) Lock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return errors.New("principal not found")
	}
	p.AccountLocked = true
	s.byID[id] = p
	return nil
}

func (s *memCredentialStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type fakeProvisioner struct {
	mu      sync.Mutex
	users   map[string]UserProfile
	hosts   map[string]HostProfile
	social  map[string]string
	names   map[string]string
	err     error
	nameErr error
	calls   int
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{
		users:  make(map[string]UserProfile),
		hosts:  make(map[string]HostProfile),
		social: make(map[string]string),
		names:  make(map[string]string),
	}
}

func (p *fakeProvisioner) RegisterUser(_ context.Context, externalUUID string, profile UserProfile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return p.err
	}
	p.users[externalUUID] = profile
	return nil
}

func (p *fakeProvisioner) RegisterSocialUser(_ context.Context, externalUUID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return p.err
	}
	p.social[externalUUID] = name
	return nil
}

func (p *fakeProvisioner) RegisterHost(_ context.Context, externalUUID string, profile HostProfile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return p.err
	}
	p.hosts[externalUUID] = profile
	return nil
}

func (p *fakeProvisioner) FindDisplayName(_ context.Context, role Role, email string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nameErr != nil {
		return "", p.nameErr
	}
	return p.names[string(role)+":"+email], nil
}

func (p *fakeProvisioner) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeNotifier struct {
	mu         sync.Mutex
	codes      map[string]string
	lockouts   []string
	codeErr    error
	lockoutErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{codes: make(map[string]string)}
}

func (n *fakeNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.codeErr != nil {
		return n.codeErr
	}
	n.codes[email] = code
	return nil
}

func (n *fakeNotifier) SendLockoutNotice(_ context.Context, email, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lockoutErr != nil {
		return n.lockoutErr
	}
	n.lockouts = append(n.lockouts, fmt.Sprintf("%s|%s", email, name))
	return nil
}

func (n *fakeNotifier) code(email string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.codes[email]
	return c, ok
}

func (n *fakeNotifier) lockoutNotices() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lockouts...)
}

type fakeBusiness struct {
	mu     sync.Mutex
	err    error
	number string
}

func (b *fakeBusiness) VerifyBusinessNumber(_ context.Context, number string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.number = number
	return b.err
}

type fakeResolver struct {
	mu    sync.Mutex
	email string
	err   error
}

func (r *fakeResolver) set(email string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.email, r.err = email, err
}

func (r *fakeResolver) ResolveEmail(_ context.Context, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.email, r.err
}
