package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
)

type MockEncryptor struct {
	mock.Mock
}

func (m *MockEncryptor) Encrypt(
	ctx context.Context,
	req gatewayDomain.EncryptRequest,
) (*gatewayDomain.EncryptResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gatewayDomain.EncryptResult), args.Error(1)
}

func TestRunEncryptResource(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ref := gatewayDomain.FileRef("lab_reports", "r-9")

	t.Run("success", func(t *testing.T) {
		encryptor := &MockEncryptor{}
		encryptor.On("Encrypt", ctx, mock.MatchedBy(func(req gatewayDomain.EncryptRequest) bool {
			return req.Token == "doctor-token" &&
				req.Resource == ref &&
				string(req.Plaintext) == "%PDF-1.7" &&
				req.ContentType == "application/pdf"
		})).Return(&gatewayDomain.EncryptResult{Resource: ref, KekVersion: 2, AuditSequence: 41}, nil)

		var out bytes.Buffer
		err := RunEncryptResource(ctx, encryptor, logger,
			IOTuple{Reader: strings.NewReader("%PDF-1.7"), Writer: &out},
			"doctor-token", ref, "application/pdf", "text")
		require.NoError(t, err)
		assert.Equal(t, "Encrypted file:lab_reports/r-9 with KEK version 2 (audit #41)\n", out.String())
		encryptor.AssertExpectations(t)
	})

	t.Run("empty input", func(t *testing.T) {
		err := RunEncryptResource(ctx, &MockEncryptor{}, logger,
			IOTuple{Reader: strings.NewReader(""), Writer: io.Discard},
			"doctor-token", ref, "", "text")
		require.Error(t, err)
	})

	t.Run("invalid reference", func(t *testing.T) {
		err := RunEncryptResource(ctx, &MockEncryptor{}, logger,
			IOTuple{Reader: strings.NewReader("x"), Writer: io.Discard},
			"doctor-token", gatewayDomain.FieldRef("patients", "../p", "ssn"), "", "text")
		require.Error(t, err)
	})

	t.Run("gateway denial", func(t *testing.T) {
		encryptor := &MockEncryptor{}
		encryptor.On("Encrypt", ctx, mock.Anything).Return(nil, errors.New("access denied"))

		err := RunEncryptResource(ctx, encryptor, logger,
			IOTuple{Reader: strings.NewReader("x"), Writer: io.Discard},
			"nurse-token", ref, "", "text")
		require.Error(t, err)
	})
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("abc"), 3)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	_, err = readLimited(strings.NewReader("abcd"), 3)
	assert.Error(t, err)
}
