package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType string
	UserID    string
	IPAddress string
	UserAgent string
	Success   bool
	Reason    string
	Metadata  map[string]string
}

// AuditLogger emits structured security events over slog. It is a pure
// producer: delivery or persistence failures of whatever consumes the log
// stream never propagate back into enforcement decisions.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogRateLimitViolation records a request that exceeded its rate limit.
func (al *AuditLogger) LogRateLimitViolation(key string, count int64, limit int, window, retryAfter time.Duration, method, path string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "rate_limit"),
		slog.String("event_type", "rate_limit_violation"),
		slog.String("key", key),
		slog.Int64("count", count),
		slog.Int("limit", limit),
		slog.Duration("window", window),
		slog.Duration("retry_after", retryAfter),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if method != "" {
		attrs = append(attrs, slog.String("method", method))
	}
	if path != "" {
		attrs = append(attrs, slog.String("path", path))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogSessionEvent records session lifecycle events (created, evicted,
// invalidated, risk signals).
func (al *AuditLogger) LogSessionEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "session"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogMFALockout records a user hitting the MFA failure threshold.
func (al *AuditLogger) LogMFALockout(userID, ipAddress string, failures int, retryAfter time.Time) {
	attrs := []slog.Attr{
		slog.String("audit_type", "mfa"),
		slog.String("event_type", "mfa_lockout"),
		slog.String("user_id", userID),
		slog.Int("failures", failures),
		slog.String("retry_after", retryAfter.UTC().Format(time.RFC3339)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}
