package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
)

type MockChainVerifier struct {
	mock.Mock
}

func (m *MockChainVerifier) VerifyChain(ctx context.Context, from, to uint64) (*auditDomain.VerifyResult, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.VerifyResult), args.Error(1)
}

func TestRunVerifyAuditChain(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid chain text", func(t *testing.T) {
		verifier := &MockChainVerifier{}
		verifier.On("VerifyChain", ctx, uint64(0), uint64(0)).
			Return(&auditDomain.VerifyResult{Valid: true, From: 1, To: 12, Checked: 12}, nil)

		var out bytes.Buffer
		require.NoError(t, RunVerifyAuditChain(ctx, verifier, logger, &out, 0, 0, "text"))
		assert.Contains(t, out.String(), "Checked:  12")
		assert.Contains(t, out.String(), "Status: PASSED")
	})

	t.Run("broken chain json", func(t *testing.T) {
		verifier := &MockChainVerifier{}
		verifier.On("VerifyChain", ctx, uint64(5), uint64(9)).
			Return(&auditDomain.VerifyResult{From: 5, To: 9, Checked: 2, BrokenAt: 7, Reason: "hash mismatch"}, nil)

		var out bytes.Buffer
		err := RunVerifyAuditChain(ctx, verifier, logger, &out, 5, 9, "json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sequence 7")

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, false, result["valid"])
		assert.Equal(t, float64(7), result["broken_at"])
	})

	t.Run("verifier error", func(t *testing.T) {
		verifier := &MockChainVerifier{}
		verifier.On("VerifyChain", ctx, uint64(0), uint64(0)).Return(nil, errors.New("store closed"))

		err := RunVerifyAuditChain(ctx, verifier, logger, io.Discard, 0, 0, "text")
		require.Error(t, err)
	})

	t.Run("inverted range", func(t *testing.T) {
		err := RunVerifyAuditChain(ctx, &MockChainVerifier{}, logger, io.Discard, 9, 5, "text")
		require.Error(t, err)
	})
}
