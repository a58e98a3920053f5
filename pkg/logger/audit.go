package logger

import (
	"context"
	"log/slog"
	"time"
)

// UsageEvent describes one quota-relevant action by a user
type UsageEvent struct {
	UserID    string
	Resource  string
	Tier      string
	Requested int
	Delivered int
	Charged   int
	Remaining int
	Metadata  map[string]string
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

// LogQuotaCharge records a committed usage charge
func (al *AuditLogger) LogQuotaCharge(event UsageEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "quota"),
		slog.String("event_type", "charge"),
		slog.String("user_id", event.UserID),
		slog.String("resource", event.Resource),
		slog.Int("charged", event.Charged),
		slog.Int("remaining", event.Remaining),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Tier != "" {
		attrs = append(attrs, slog.String("tier", event.Tier))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogSearch records the outcome of a discovery call. Rejected calls
// (Delivered == 0 with a reason in Metadata) are logged at warn.
func (al *AuditLogger) LogSearch(event UsageEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "search"),
		slog.String("event_type", event.Resource),
		slog.String("user_id", event.UserID),
		slog.Int("requested", event.Requested),
		slog.Int("delivered", event.Delivered),
		slog.Int("charged", event.Charged),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if _, rejected := event.Metadata["rejected"]; rejected {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
