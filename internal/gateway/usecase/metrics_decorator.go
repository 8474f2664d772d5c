package usecase

import (
	"context"
	"time"

	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	"github.com/allisson/gatekeeper/internal/metrics"
)

// gatewayWithMetrics decorates Gateway with metrics instrumentation.
type gatewayWithMetrics struct {
	next    Gateway
	metrics metrics.GatewayMetrics
}

// NewGatewayWithMetrics wraps a Gateway with metrics recording. Denials are
// also counted by their internal reason.
func NewGatewayWithMetrics(gateway Gateway, m metrics.GatewayMetrics) Gateway {
	return &gatewayWithMetrics{
		next:    gateway,
		metrics: m,
	}
}

func (g *gatewayWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		if reason, ok := gatewayDomain.ReasonOf(err); ok {
			outcome = metrics.OutcomeDenied
			g.metrics.RecordDenial(ctx, operation, string(reason))
		}
	}

	g.metrics.RecordRequest(ctx, operation, outcome, time.Since(start))
}

// Resolve records metrics for decryption requests.
func (g *gatewayWithMetrics) Resolve(
	ctx context.Context,
	req gatewayDomain.ResolveRequest,
) (*gatewayDomain.ResolveResult, error) {
	start := time.Now()
	result, err := g.next.Resolve(ctx, req)
	g.record(ctx, "resolve", start, err)
	return result, err
}

// Encrypt records metrics for encryption requests.
func (g *gatewayWithMetrics) Encrypt(
	ctx context.Context,
	req gatewayDomain.EncryptRequest,
) (*gatewayDomain.EncryptResult, error) {
	start := time.Now()
	result, err := g.next.Encrypt(ctx, req)
	g.record(ctx, "encrypt", start, err)
	return result, err
}

// ReadArtifact records metrics for artifact reads.
func (g *gatewayWithMetrics) ReadArtifact(ctx context.Context, req gatewayDomain.ArtifactRequest) ([]byte, error) {
	start := time.Now()
	data, err := g.next.ReadArtifact(ctx, req)
	g.record(ctx, "read_artifact", start, err)
	return data, err
}

// Logout records metrics for session teardown.
func (g *gatewayWithMetrics) Logout(ctx context.Context, req gatewayDomain.LogoutRequest) error {
	start := time.Now()
	err := g.next.Logout(ctx, req)
	g.record(ctx, "logout", start, err)
	return err
}

// RewrapAll records metrics for KEK rotation sweeps.
func (g *gatewayWithMetrics) RewrapAll(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := g.next.RewrapAll(ctx)
	g.record(ctx, "rewrap", start, err)
	return count, err
}
