package notify

import (
	"context"

	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
)

// AlertRecorder counts alerts. metrics.GatewayMetrics satisfies it.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, rule, severity string)
}

// MetricsSink counts every delivered alert by rule and severity.
type MetricsSink struct {
	recorder AlertRecorder
}

// NewMetricsSink creates a MetricsSink.
func NewMetricsSink(recorder AlertRecorder) *MetricsSink {
	return &MetricsSink{recorder: recorder}
}

// Name implements Sink.
func (s *MetricsSink) Name() string {
	return "metrics"
}

// Send implements Sink.
func (s *MetricsSink) Send(ctx context.Context, alert monitorDomain.Alert) error {
	s.recorder.RecordAlert(ctx, string(alert.Rule), string(alert.Severity))
	return nil
}
