package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels shared by every gateway operation.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// GatewayMetrics records what the gateway did, never what it touched:
// no resource ids, principals or addresses end up as labels.
type GatewayMetrics interface {
	// RecordRequest counts one gateway operation and observes its latency.
	RecordRequest(ctx context.Context, operation, outcome string, duration time.Duration)
	// RecordDenial counts a denied operation by its internal reason.
	RecordDenial(ctx context.Context, operation, reason string)
	// RecordAlert counts a security alert handed to the sinks.
	RecordAlert(ctx context.Context, rule, severity string)
}

type gatewayMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	denials  metric.Int64Counter
	alerts   metric.Int64Counter
}

// NewGatewayMetrics creates the gateway instruments on meterProvider.
// Instrument names are prefixed with namespace.
func NewGatewayMetrics(meterProvider metric.MeterProvider, namespace string) (GatewayMetrics, error) {
	meter := meterProvider.Meter(namespace)

	requests, err := meter.Int64Counter(
		fmt.Sprintf("%s_gateway_requests_total", namespace),
		metric.WithDescription("Gateway operations by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		fmt.Sprintf("%s_gateway_request_duration_seconds", namespace),
		metric.WithDescription("Gateway operation latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}

	denials, err := meter.Int64Counter(
		fmt.Sprintf("%s_gateway_denials_total", namespace),
		metric.WithDescription("Denied gateway operations by reason"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create denial counter: %w", err)
	}

	alerts, err := meter.Int64Counter(
		fmt.Sprintf("%s_security_alerts_total", namespace),
		metric.WithDescription("Security alerts raised by rule and severity"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert counter: %w", err)
	}

	return &gatewayMetrics{requests: requests, latency: latency, denials: denials, alerts: alerts}, nil
}

func (g *gatewayMetrics) RecordRequest(ctx context.Context, operation, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	g.requests.Add(ctx, 1, attrs)
	g.latency.Record(ctx, duration.Seconds(), attrs)
}

func (g *gatewayMetrics) RecordDenial(ctx context.Context, operation, reason string) {
	g.denials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("reason", reason),
	))
}

func (g *gatewayMetrics) RecordAlert(ctx context.Context, rule, severity string) {
	g.alerts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule", rule),
		attribute.String("severity", severity),
	))
}

// NoOpGatewayMetrics discards everything. Used when metrics are disabled.
type NoOpGatewayMetrics struct{}

// NewNoOpGatewayMetrics returns a GatewayMetrics that records nothing.
func NewNoOpGatewayMetrics() GatewayMetrics {
	return NoOpGatewayMetrics{}
}

func (NoOpGatewayMetrics) RecordRequest(context.Context, string, string, time.Duration) {}

func (NoOpGatewayMetrics) RecordDenial(context.Context, string, string) {}

func (NoOpGatewayMetrics) RecordAlert(context.Context, string, string) {}
