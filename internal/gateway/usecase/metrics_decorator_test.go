package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/gatekeeper/internal/errors"
	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	"github.com/allisson/gatekeeper/internal/metrics"
)

type mockGatewayMetrics struct {
	mock.Mock
}

func (m *mockGatewayMetrics) RecordRequest(ctx context.Context, operation, outcome string, duration time.Duration) {
	m.Called(ctx, operation, outcome, duration)
}

func (m *mockGatewayMetrics) RecordDenial(ctx context.Context, operation, reason string) {
	m.Called(ctx, operation, reason)
}

func (m *mockGatewayMetrics) RecordAlert(ctx context.Context, rule, severity string) {
	m.Called(ctx, rule, severity)
}

var _ metrics.GatewayMetrics = (*mockGatewayMetrics)(nil)

type stubGateway struct {
	err error
}

func (s *stubGateway) Resolve(context.Context, gatewayDomain.ResolveRequest) (*gatewayDomain.ResolveResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gatewayDomain.ResolveResult{}, nil
}

func (s *stubGateway) Encrypt(context.Context, gatewayDomain.EncryptRequest) (*gatewayDomain.EncryptResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gatewayDomain.EncryptResult{}, nil
}

func (s *stubGateway) ReadArtifact(context.Context, gatewayDomain.ArtifactRequest) ([]byte, error) {
	return nil, s.err
}

func (s *stubGateway) Logout(context.Context, gatewayDomain.LogoutRequest) error {
	return s.err
}

func (s *stubGateway) RewrapAll(context.Context) (int, error) {
	return 0, s.err
}

func expectMetrics(m *mockGatewayMetrics, operation, outcome, reason string) {
	m.On("RecordRequest", mock.Anything, operation, outcome, mock.AnythingOfType("time.Duration")).Once()
	if reason != "" {
		m.On("RecordDenial", mock.Anything, operation, reason).Once()
	}
}

func TestNewGatewayWithMetrics(t *testing.T) {
	t.Parallel()

	decorator := NewGatewayWithMetrics(&stubGateway{}, &mockGatewayMetrics{})

	assert.NotNil(t, decorator)
	assert.Implements(t, (*Gateway)(nil), decorator)
}

func TestGatewayWithMetrics_Status(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		err     error
		outcome string
		reason  string
	}{
		{name: "Success", outcome: metrics.OutcomeSuccess},
		{
			name:    "Denial",
			err:     gatewayDomain.NewDenialError(gatewayDomain.DenialInsufficientPermission),
			outcome: metrics.OutcomeDenied,
			reason:  "insufficient_permission",
		},
		{name: "Error", err: errors.New("boom"), outcome: metrics.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &mockGatewayMetrics{}
			expectMetrics(m, "resolve", tt.outcome, tt.reason)
			expectMetrics(m, "encrypt", tt.outcome, tt.reason)
			expectMetrics(m, "read_artifact", tt.outcome, tt.reason)
			expectMetrics(m, "logout", tt.outcome, tt.reason)
			expectMetrics(m, "rewrap", tt.outcome, tt.reason)

			decorator := NewGatewayWithMetrics(&stubGateway{err: tt.err}, m)
			_, err := decorator.Resolve(ctx, gatewayDomain.ResolveRequest{})
			assert.Equal(t, tt.err, err)
			_, _ = decorator.Encrypt(ctx, gatewayDomain.EncryptRequest{})
			_, _ = decorator.ReadArtifact(ctx, gatewayDomain.ArtifactRequest{})
			_ = decorator.Logout(ctx, gatewayDomain.LogoutRequest{})
			_, _ = decorator.RewrapAll(ctx)

			m.AssertExpectations(t)
		})
	}
}
