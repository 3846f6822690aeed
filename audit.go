package authcore

import (
	"context"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEvent is one security-relevant outcome. Subject is the principal's
// external UUID; emails, passwords, codes and tokens are never recorded.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Role      Role              `json:"role,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func newAuditEvent(now time.Time, eventType string) AuditEvent {
	return AuditEvent{
		ID:        ksuid.New().String(),
		Timestamp: now.UTC(),
		EventType: eventType,
	}
}

// MarshalLogObject lets events be logged as a single zap object.
func (e AuditEvent) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", e.ID)
	enc.AddTime("timestamp", e.Timestamp)
	enc.AddString("event_type", e.EventType)
	enc.AddBool("success", e.Success)
	if e.Role != "" {
		enc.AddString("role", string(e.Role))
	}
	if e.Subject != "" {
		enc.AddString("subject", e.Subject)
	}
	if e.Error != "" {
		enc.AddString("error", e.Error)
		enc.AddString("kind", e.Kind)
	}
	if len(e.Metadata) > 0 {
		return enc.AddObject("metadata", zapcore.ObjectMarshalerFunc(func(m zapcore.ObjectEncoder) error {
			for k, v := range e.Metadata {
				m.AddString(k, v)
			}
			return nil
		}))
	}
	return nil
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }

// ZapAuditSink writes each event as one structured log entry. Failed
// outcomes are logged at warn level.
type ZapAuditSink struct {
	logger *zap.Logger
}

func NewZapAuditSink(logger *zap.Logger) *ZapAuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAuditSink{logger: logger}
}

func (s *ZapAuditSink) Emit(_ context.Context, event AuditEvent) {
	level := zapcore.InfoLevel
	if !event.Success {
		level = zapcore.WarnLevel
	}
	if ce := s.logger.Check(level, "audit"); ce != nil {
		ce.Write(zap.Object("event", event))
	}
}
