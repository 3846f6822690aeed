package authcore

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

// blockingSink holds the worker inside Emit until release receives.
func blockingSink(release <-chan struct{}) AuditSink {
	return AuditSinkFunc(func(context.Context, AuditEvent) { <-release })
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	var calls atomic.Int64
	sink := AuditSinkFunc(func(context.Context, AuditEvent) { calls.Add(1) })
	h := newHarnessWithSink(t, sink)
	h.seedUser(t, "alice@example.com", "Secret1!")

	_, _ = h.engine.Login(context.Background(), RoleUser, "alice@example.com", "Wrong1!!")
	h.engine.Close()

	require.Zero(t, calls.Load())
	require.Zero(t, h.engine.AuditDropped())
}

func TestAuditLoginFailureEventFields(t *testing.T) {
	sink := &recordingSink{}
	h := newHarnessWithSink(t, sink, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 16
		c.Audit.DropIfFull = true
	})
	p := h.seedUser(t, "alice@example.com", "Secret1!")

	_, _ = h.engine.Login(context.Background(), RoleUser, "alice@example.com", "super-secret-password")
	h.engine.Close()

	events := sink.snapshot()
	require.Len(t, events, 1)
	ev := events[0]
	require.Equal(t, "login_failure", ev.EventType)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, RoleUser, ev.Role)
	require.Equal(t, p.ExternalUUID, ev.Subject)
	require.False(t, ev.Success)
	require.Equal(t, "invalid_password", ev.Error)
	require.Equal(t, "validation_failed", ev.Kind)
	require.Equal(t, "1", ev.Metadata["failures"])
	require.WithinDuration(t, time.Now(), ev.Timestamp, time.Minute)
}

func TestAuditDropModeNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, blockingSink(release))
	t.Cleanup(func() {
		close(release)
		d.Close()
	})

	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "e"})
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.NotZero(t, d.Dropped())
}

func TestAuditBlockingModeWaitsForRoom(t *testing.T) {
	release := make(chan struct{})
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, blockingSink(release))
	t.Cleanup(func() {
		close(release)
		d.Close()
	})

	d.Emit(context.Background(), AuditEvent{EventType: "e1"})
	d.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to wait while the queue is full")
	case <-time.After(150 * time.Millisecond):
	}

	release <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected waiting emit to proceed once the worker took an event")
	}
	require.Zero(t, d.Dropped())
}

func TestAuditBlockingModeHonoursContext(t *testing.T) {
	release := make(chan struct{})
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, blockingSink(release))
	t.Cleanup(func() {
		close(release)
		d.Close()
	})

	d.Emit(context.Background(), AuditEvent{EventType: "e1"})
	d.Emit(context.Background(), AuditEvent{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, AuditEvent{EventType: "e3"})
	require.Less(t, time.Since(start), time.Second)
}

func TestAuditCloseDrainsAndIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{"e1", "e2", "e3"} {
		d.Emit(context.Background(), AuditEvent{EventType: typ})
	}
	d.Close()
	d.Close()
	d.Emit(context.Background(), AuditEvent{EventType: "late"})

	var got []string
	for _, ev := range sink.snapshot() {
		got = append(got, ev.EventType)
	}
	require.Equal(t, []string{"e1", "e2", "e3"}, got)

	var nilDispatcher *auditDispatcher
	nilDispatcher.Emit(context.Background(), AuditEvent{})
	nilDispatcher.Close()
	require.Zero(t, nilDispatcher.Dropped())
}

func TestZapAuditSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapAuditSink(zap.New(core))

	ok := newAuditEvent(time.Now(), "login_success")
	ok.Role = RoleHost
	ok.Subject = "u1"
	ok.Success = true
	sink.Emit(context.Background(), ok)

	failed := newAuditEvent(time.Now(), "verification_mismatch")
	failed.Role = RoleUser
	failed.Error = "verification_mismatch"
	failed.Kind = "validation_failed"
	failed.Metadata = map[string]string{"failures": "2"}
	sink.Emit(context.Background(), failed)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)

	first := entries[0].ContextMap()["event"].(map[string]interface{})
	require.Equal(t, "login_success", first["event_type"])
	require.Equal(t, "host", first["role"])
	require.Equal(t, "u1", first["subject"])
	require.NotContains(t, first, "error")

	second := entries[1].ContextMap()["event"].(map[string]interface{})
	require.Equal(t, "validation_failed", second["kind"])
	require.Equal(t, map[string]interface{}{"failures": "2"}, second["metadata"])

	NewZapAuditSink(nil).Emit(context.Background(), ok)
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := &recordingSink{}
	h := newHarnessWithSink(t, sink, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 64
	})
	ctx := context.Background()
	email := "secret.person@example.com"
	secret := "Secret1!"

	code := h.issueCode(t, RoleUser, email)
	_ = h.engine.VerifyCode(ctx, RoleUser, email, wrongCode(code))
	reg, err := h.engine.Register(ctx, userRequest(email, code))
	require.NoError(t, err)
	res, err := h.engine.Login(ctx, RoleUser, email, secret)
	require.NoError(t, err)
	_, err = h.engine.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	h.engine.Close()

	stored, _, _ := h.store.FindByUUID(ctx, reg.ExternalUUID)
	needles := []string{email, secret, code, res.AccessToken, res.RefreshToken, stored.PasswordHash}

	events := sink.snapshot()
	require.GreaterOrEqual(t, len(events), 5)
	for _, ev := range events {
		fields := []string{ev.Error, ev.Subject, ev.Kind}
		for k, v := range ev.Metadata {
			fields = append(fields, k, v)
		}
		for _, needle := range needles {
			if needle == "" {
				continue
			}
			for _, f := range fields {
				require.False(t, strings.Contains(f, needle), "event %q leaked %q", ev.EventType, needle)
			}
		}
	}
}
