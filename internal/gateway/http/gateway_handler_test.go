package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	"github.com/allisson/gatekeeper/internal/gateway/http/dto"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Resolve(
	ctx context.Context,
	req gatewayDomain.ResolveRequest,
) (*gatewayDomain.ResolveResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gatewayDomain.ResolveResult), args.Error(1)
}

func (m *mockGateway) Encrypt(
	ctx context.Context,
	req gatewayDomain.EncryptRequest,
) (*gatewayDomain.EncryptResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gatewayDomain.EncryptResult), args.Error(1)
}

func (m *mockGateway) ReadArtifact(ctx context.Context, req gatewayDomain.ArtifactRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockGateway) Logout(ctx context.Context, req gatewayDomain.LogoutRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockGateway) RewrapAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func setupRouter(t *testing.T) (*gin.Engine, *mockGateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway := &mockGateway{}
	t.Cleanup(func() { gateway.AssertExpectations(t) })
	handler := NewGatewayHandler(gateway, slog.New(slog.NewTextHandler(io.Discard, nil)))

	router := gin.New()
	router.POST("/v1/resources/:type/:id/encrypt", handler.EncryptHandler)
	router.POST("/v1/resolve", handler.ResolveHandler)
	router.GET("/v1/sessions/:id/artifacts/*path", handler.ReadArtifactHandler)
	router.DELETE("/v1/sessions/:id", handler.LogoutHandler)
	return router, gateway
}

func doJSON(router *gin.Engine, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGatewayHandler_Resolve(t *testing.T) {
	ref := gatewayDomain.FieldRef("patients", "p-1", "medical_history")

	t.Run("Success_Field", func(t *testing.T) {
		router, gateway := setupRouter(t)
		gateway.On("Resolve", mock.Anything, mock.MatchedBy(func(req gatewayDomain.ResolveRequest) bool {
			return req.Token == "tok" && req.StepUpCode == "123456" && req.Resource == ref
		})).Return(&gatewayDomain.ResolveResult{
			Resource:      ref,
			Plaintext:     []byte("asthma"),
			AuditSequence: 7,
		}, nil).Once()

		w := doJSON(router, http.MethodPost, "/v1/resolve",
			dto.ResolveRequest{Kind: "field", Type: "patients", ID: "p-1", Field: "medical_history"},
			map[string]string{"Authorization": "Bearer tok", StepUpHeader: "123456"})

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ResolveResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "YXN0aG1h", response.Value)
		assert.Equal(t, uint64(7), response.AuditSequence)
		assert.Nil(t, response.Artifact)
	})

	t.Run("Success_File", func(t *testing.T) {
		router, gateway := setupRouter(t)
		fileRef := gatewayDomain.FileRef("lab_report", "r-1")
		expires := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		gateway.On("Resolve", mock.Anything, mock.Anything).Return(&gatewayDomain.ResolveResult{
			Resource: fileRef,
			Artifact: &gatewayDomain.ArtifactRef{SessionID: "s-1", Path: "file_lab_report_r-1.000001", ExpiresAt: expires},
		}, nil).Once()

		w := doJSON(router, http.MethodPost, "/v1/resolve",
			dto.ResolveRequest{Kind: "file", Type: "lab_report", ID: "r-1"},
			map[string]string{"Authorization": "Bearer tok"})

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ResolveResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.NotNil(t, response.Artifact)
		assert.Equal(t, "s-1", response.Artifact.SessionID)
		assert.Empty(t, response.Value)
	})

	t.Run("DenialsLookAlike", func(t *testing.T) {
		for _, reason := range []gatewayDomain.DenialReason{
			gatewayDomain.DenialInsufficientPermission,
			gatewayDomain.DenialTamperedOrCorrupt,
			gatewayDomain.DenialKeyNotFound,
		} {
			router, gateway := setupRouter(t)
			gateway.On("Resolve", mock.Anything, mock.Anything).
				Return(nil, gatewayDomain.NewDenialError(reason)).Once()

			w := doJSON(router, http.MethodPost, "/v1/resolve",
				dto.ResolveRequest{Kind: "field", Type: "patients", ID: "p-1", Field: "ssn"}, nil)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.JSONEq(t, `{"error":"access_denied","message":"Access denied"}`, w.Body.String())
		}
	})

	t.Run("RateLimited", func(t *testing.T) {
		router, gateway := setupRouter(t)
		denial := gatewayDomain.NewDenialError(gatewayDomain.DenialRateLimited)
		denial.RetryAfter = 90 * time.Second
		gateway.On("Resolve", mock.Anything, mock.Anything).Return(nil, denial).Once()

		w := doJSON(router, http.MethodPost, "/v1/resolve",
			dto.ResolveRequest{Kind: "field", Type: "patients", ID: "p-1", Field: "ssn"}, nil)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "90", w.Header().Get("Retry-After"))
	})

	t.Run("UpstreamTimeout", func(t *testing.T) {
		router, gateway := setupRouter(t)
		gateway.On("Resolve", mock.Anything, mock.Anything).
			Return(nil, gatewayDomain.NewDenialError(gatewayDomain.DenialUpstreamTimeout)).Once()

		w := doJSON(router, http.MethodPost, "/v1/resolve",
			dto.ResolveRequest{Kind: "field", Type: "patients", ID: "p-1", Field: "ssn"}, nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("ValidationError", func(t *testing.T) {
		router, _ := setupRouter(t)

		w := doJSON(router, http.MethodPost, "/v1/resolve",
			dto.ResolveRequest{Kind: "field", Type: "patients", ID: "../p-1", Field: "ssn"}, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestGatewayHandler_Encrypt(t *testing.T) {
	router, gateway := setupRouter(t)
	ref := gatewayDomain.FieldRef("patients", "p-1", "ssn")
	gateway.On("Encrypt", mock.Anything, mock.MatchedBy(func(req gatewayDomain.EncryptRequest) bool {
		return req.Resource == ref && string(req.Plaintext) == "123" && req.Token == "tok"
	})).Return(&gatewayDomain.EncryptResult{Resource: ref, KekVersion: 2, AuditSequence: 3}, nil).Once()

	w := doJSON(router, http.MethodPost, "/v1/resources/patients/p-1/encrypt",
		dto.EncryptResourceRequest{Field: "ssn", Value: "MTIz"},
		map[string]string{"Authorization": "Bearer tok"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var response dto.EncryptResourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, uint(2), response.KekVersion)
	assert.Equal(t, "field:patients/p-1/ssn", response.Resource)
}

func TestGatewayHandler_ReadArtifact(t *testing.T) {
	router, gateway := setupRouter(t)
	gateway.On("ReadArtifact", mock.Anything, gatewayDomain.ArtifactRequest{
		Token:     "tok",
		SourceIP:  "192.0.2.1",
		SessionID: "s-1",
		Path:      "report.000001",
	}).Return([]byte("%PDF"), nil).Once()

	w := doJSON(router, http.MethodGet, "/v1/sessions/s-1/artifacts/report.000001", nil,
		map[string]string{"Authorization": "Bearer tok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF", w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestGatewayHandler_Logout(t *testing.T) {
	router, gateway := setupRouter(t)
	gateway.On("Logout", mock.Anything, mock.MatchedBy(func(req gatewayDomain.LogoutRequest) bool {
		return req.SessionID == "s-1" && req.Token == "tok"
	})).Return(nil).Once()

	w := doJSON(router, http.MethodDelete, "/v1/sessions/s-1", nil,
		map[string]string{"Authorization": "Bearer tok"})

	assert.Equal(t, http.StatusNoContent, w.Code)
}
