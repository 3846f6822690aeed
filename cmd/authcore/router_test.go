package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/adapter/bizno"
	"github.com/MrEthical07/authcore/adapter/mail"
	"github.com/MrEthical07/authcore/adapter/oauth"
	"github.com/MrEthical07/authcore/adapter/provisioning"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

var codePattern = regexp.MustCompile(`\[ (\d+) \]`)

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) send(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match := codePattern.FindSubmatch(msg); match != nil {
		m.codes[to[0]] = string(match[1])
	}
	return nil
}

func (m *mailbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type testServer struct {
	router *gin.Engine
	engine *authcore.Engine
	mail   *mailbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, credential.CreateSchema(context.Background(), db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	services := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, "Kim")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(services.Close)

	kakao := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"kakao_account":{"has_email":true,"email":"social@kakao.com"}}`)
	}))
	t.Cleanup(kakao.Close)

	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items":[{"bsttcd":"01"}]}`)
	}))
	t.Cleanup(registry.Close)

	box := &mailbox{codes: make(map[string]string)}

	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithLogger(zap.NewNop()).
		WithRedis(rdb).
		WithCredentialStore(credential.NewStore(db, node)).
		WithProvisioner(provisioning.New(provisioning.Config{UserServiceURL: services.URL, HostServiceURL: services.URL})).
		WithNotifier(mail.NewSender(mail.Config{Host: "localhost", Port: 25, From: "a@b.c"}).WithSendFunc(box.send)).
		WithBusinessVerifier(bizno.New(registry.URL, "key", nil)).
		WithSocialResolver(authcore.ProviderKakao, oauth.NewKakaoResolver(kakao.URL, nil)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testServer{
		router: newRouter(engine, zap.NewNop(), prometheus.NewPrometheusExporter(engine).Handler()),
		engine: engine,
		mail:   box,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func (s *testServer) registerUser(t *testing.T, email string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/user/verification", gin.H{"email": email}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/user/register", gin.H{
		"email":       email,
		"password":    "Secret1!",
		"code":        s.mail.code(email),
		"name":        "Kim",
		"phoneNumber": "010-1234-5678",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRegisterLoginLogout(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, "kim@example.com")

	rec := s.do(t, http.MethodGet, "/auth/email-check?email=KIM@example.com", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode(t, rec)["taken"])

	rec = s.do(t, http.MethodPost, "/auth/user/login", gin.H{"email": "kim@example.com", "password": "Secret1!"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tokens := decode(t, rec)
	access := tokens["accessToken"].(string)
	refreshToken := tokens["refreshToken"].(string)

	rec = s.do(t, http.MethodGet, "/auth/user/me", nil, bearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	require.Equal(t, "user", me["role"])
	require.Equal(t, tokens["externalUuid"], me["externalUuid"])

	rec = s.do(t, http.MethodGet, "/internal/principals/"+me["externalUuid"].(string)+"/email", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "kim@example.com", decode(t, rec)["email"])

	rec = s.do(t, http.MethodGet, "/auth/host/me", nil, bearer(access))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/logout", nil, bearer(access))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": refreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotates(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, "rot@example.com")

	rec := s.do(t, http.MethodPost, "/auth/user/login", gin.H{"email": "rot@example.com", "password": "Secret1!"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode(t, rec)["refreshToken"].(string)

	rec = s.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": first}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEqual(t, first, decode(t, rec)["refreshToken"])

	rec = s.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": first}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginErrors(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, "lock@example.com")

	rec := s.do(t, http.MethodPost, "/auth/user/login", gin.H{"email": "ghost@example.com", "password": "Secret1!"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/auth/user/login", gin.H{"email": "lock@example.com"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 4; i++ {
		rec = s.do(t, http.MethodPost, "/auth/user/login", gin.H{"email": "lock@example.com", "password": "Wrong1!x"}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/auth/user/login", gin.H{"email": "lock@example.com", "password": "Wrong1!x"}, nil)
	require.Equal(t, http.StatusLocked, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/user/login", gin.H{"email": "lock@example.com", "password": "Secret1!"}, nil)
	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestVerificationResendCarriesRetryAfter(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/host/verification", gin.H{"email": "h@example.com"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/host/verification", gin.H{"email": "h@example.com"}, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = s.do(t, http.MethodPost, "/auth/host/verification/confirm", gin.H{"email": "h@example.com", "code": s.mail.code("h@example.com")}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRegisterHostAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/host/verification", gin.H{"email": "host@example.com"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := gin.H{
		"email":                      "host@example.com",
		"password":                   "Secret1!",
		"code":                       s.mail.code("host@example.com"),
		"name":                       "Park",
		"phoneNumber":                "010-1234-5678",
		"businessRegistrationNumber": "123-45-67890",
		"bankName":                   "KB",
		"accountNumber":              "123-456-789012",
		"settlementCycle":            30,
	}
	rec = s.do(t, http.MethodPost, "/auth/host/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/host/login", gin.H{"email": "host@example.com", "password": "Secret1!"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/host/register", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "consumed code cannot be reused")
}

func TestSocialLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/social/kakao", gin.H{"accessToken": "good", "name": "Lee"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, decode(t, rec)["created"])

	rec = s.do(t, http.MethodPost, "/auth/social/kakao", gin.H{"accessToken": "good"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decode(t, rec)["created"])

	rec = s.do(t, http.MethodPost, "/auth/social/kakao", gin.H{"accessToken": "bad"}, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/social/naver", gin.H{"accessToken": "good"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, "m@example.com")

	rec := s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "authcore_"), rec.Body.String())
}

func TestOTelMetricsOptIn(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, "otel@example.com")

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	closeOff, err := registerOTelMetrics(false, provider.Meter("off"), s.engine)
	require.NoError(t, err)
	closeOff()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		require.Empty(t, sm.Metrics)
	}

	closeOn, err := registerOTelMetrics(true, provider.Meter("on"), s.engine)
	require.NoError(t, err)
	defer closeOn()

	require.NoError(t, reader.Collect(context.Background(), &rm))
	var registered int64 = -1
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "authcore_registration_success_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			registered = sum.DataPoints[0].Value
		}
	}
	require.EqualValues(t, 1, registered)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		authcore.ErrAccountLocked:              http.StatusLocked,
		authcore.ErrInvalidPassword:            http.StatusUnauthorized,
		authcore.ErrEmailAlreadyExists:         http.StatusConflict,
		authcore.ErrVerificationBlocked:        http.StatusTooManyRequests,
		authcore.ErrRegistrationInvalid:        http.StatusBadRequest,
		authcore.ErrPrincipalNotFound:          http.StatusNotFound,
		authcore.ErrRemoteProvisioningFailed:   http.StatusBadGateway,
		authcore.ErrStoreUnavailable:           http.StatusServiceUnavailable,
		authcore.ErrVerificationDeliveryFailed: http.StatusBadGateway,
	}
	for err, want := range cases {
		require.Equal(t, want, statusFor(err), err.Error())
	}
}
