package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Audit event actions emitted by the engine.
const (
	AuditIssued        = "session.issued"
	AuditRotated       = "session.rotated"
	AuditRevoked       = "session.revoked"
	AuditRevokedAll    = "session.revoked_all"
	AuditReuseDetected = "session.reuse_detected"
	AuditCleanup       = "session.cleanup"
)

// AuditEvent is a discrete security-relevant occurrence. Format and
// transport beyond this struct are the sink's concern.
type AuditEvent struct {
	ID        string
	Action    string
	UserID    string
	SessionID string
	IPAddress string
	UserAgent string
	At        time.Time
	Meta      map[string]any
}

// Auditor receives engine audit events. Implementations must not block the
// request path; emission failures are the sink's problem, not the engine's.
type Auditor interface {
	Emit(ctx context.Context, ev AuditEvent)
}

// NopAuditor discards all events.
type NopAuditor struct{}

// Emit implements Auditor.
func (NopAuditor) Emit(context.Context, AuditEvent) {}

// LogAuditor writes audit events to a structured logger. It is the default
// sink; deployments with a dedicated audit pipeline swap in their own.
type LogAuditor struct {
	log *zap.Logger
}

// NewLogAuditor builds a logger-backed audit sink.
func NewLogAuditor(log *zap.Logger) *LogAuditor {
	return &LogAuditor{log: log.With(zap.String("component", "session_audit"))}
}

// Emit implements Auditor.
func (a *LogAuditor) Emit(_ context.Context, ev AuditEvent) {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("action", ev.Action),
		zap.Time("at", ev.At),
	}
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.SessionID != "" {
		fields = append(fields, zap.String("session_id", ev.SessionID))
	}
	if ev.IPAddress != "" {
		fields = append(fields, zap.String("ip", ev.IPAddress))
	}
	if ev.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", ev.UserAgent))
	}
	if len(ev.Meta) > 0 {
		fields = append(fields, zap.Any("meta", ev.Meta))
	}
	a.log.Info("audit", fields...)
}

func newAuditEvent(action string, now time.Time) AuditEvent {
	return AuditEvent{
		ID:     uuid.NewString(),
		Action: action,
		At:     now,
	}
}
