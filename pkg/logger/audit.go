package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Username      string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs login and refresh attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
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
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogLockout logs account lockout transitions
func (al *AuditLogger) LogLockout(userID, reason string, until time.Time) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "lockout"),
		slog.String("event_type", "account_locked"),
		slog.String("user_id", userID),
		slog.String("reason", reason),
		slog.Time("locked_until", until),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogTokenRevocation logs bearer and refresh token revocations
func (al *AuditLogger) LogTokenRevocation(userID, reason, ipAddress string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "revocation"),
		slog.String("event_type", "token_revoked"),
		slog.String("user_id", userID),
		slog.String("reason", reason),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogPasswordChange logs password change events
func (al *AuditLogger) LogPasswordChange(userID string, success bool) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}

	al.logger.LogAttrs(context.Background(), level, "audit",
		slog.String("audit_type", "password"),
		slog.String("event_type", "password_change"),
		slog.Bool("success", success),
		slog.String("user_id", userID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
