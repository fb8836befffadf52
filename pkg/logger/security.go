package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// SecurityEvent is a structured record of an abuse-prevention decision
type SecurityEvent struct {
	EventType string
	Email     string // logged masked
	IPAddress string
	Outcome   string
	Metadata  map[string]string
}

// SecurityLogger writes security events to the application logger under audit_type=security
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger}
}

// Log emits event at Info, or Warn when warn is set
func (sl *SecurityLogger) Log(ctx context.Context, event SecurityEvent, warn bool) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Outcome != "" {
		attrs = append(attrs, slog.String("outcome", event.Outcome))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if warn {
		level = slog.LevelWarn
	}
	sl.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogLockout records that an identifier exhausted its attempt budget
func (sl *SecurityLogger) LogLockout(ctx context.Context, email, attemptType string, lockoutMinutes int) {
	sl.Log(ctx, SecurityEvent{
		EventType: "lockout",
		Email:     email,
		Outcome:   "denied",
		Metadata: map[string]string{
			"attempt_type":    attemptType,
			"lockout_minutes": strconv.Itoa(lockoutMinutes),
		},
	}, true)
}

// LogThrottled records an IP-level throttle rejection
func (sl *SecurityLogger) LogThrottled(ctx context.Context, scope, ip string, retryAfter int) {
	sl.Log(ctx, SecurityEvent{
		EventType: "ip_throttled",
		IPAddress: ip,
		Outcome:   "rejected",
		Metadata: map[string]string{
			"scope":       scope,
			"retry_after": strconv.Itoa(retryAfter),
		},
	}, true)
}

// LogPasswordResetRequested records a reset request. outcome is one of
// "sent", "no_account", "email_failed".
func (sl *SecurityLogger) LogPasswordResetRequested(ctx context.Context, email, outcome string) {
	sl.Log(ctx, SecurityEvent{
		EventType: "password_reset_requested",
		Email:     email,
		Outcome:   outcome,
	}, outcome != "sent")
}
