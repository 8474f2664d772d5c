package notify

import (
	"context"
	"log/slog"

	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
)

// LogSink writes alerts to the structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string {
	return "log"
}

// Send implements Sink.
func (s *LogSink) Send(ctx context.Context, alert monitorDomain.Alert) error {
	s.logger.LogAttrs(ctx, severityLevel(alert.Severity), "security alert",
		slog.String("alert_id", alert.ID.String()),
		slog.String("rule", string(alert.Rule)),
		slog.String("subject", alert.Subject),
		slog.String("severity", string(alert.Severity)),
		slog.String("message", alert.Message),
		slog.Any("metadata", alert.Metadata),
	)
	return nil
}

func severityLevel(severity monitorDomain.Severity) slog.Level {
	switch severity {
	case monitorDomain.SeverityCritical, monitorDomain.SeverityHigh:
		return slog.LevelError
	case monitorDomain.SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
