// Package integration drives the whole gateway over HTTP: storage, envelope
// encryption, policy, step-up, sessions and the audit chain.
package integration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/gatekeeper/internal/app"
	"github.com/allisson/gatekeeper/internal/config"
	gatewayDTO "github.com/allisson/gatekeeper/internal/gateway/http/dto"
	identityService "github.com/allisson/gatekeeper/internal/identity/service"
	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

const (
	jwtSecret  = "integration-signing-key-0123456789"
	stepUpCode = "246810"
)

// integrationTestContext holds the running server and issued tokens.
type integrationTestContext struct {
	container *app.Container
	server    *httptest.Server
	tokens    map[policyDomain.Role]string
}

func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	role policyDomain.Role,
	body any,
	headers map[string]string,
) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, ctx.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := ctx.tokens[role]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := ctx.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func setupIntegrationTest(t *testing.T) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	stepUp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"valid": req.Code == stepUpCode})
	}))
	t.Cleanup(stepUp.Close)

	cfg := &config.Config{
		ServerHost:         "localhost",
		ServerPort:         8080,
		LogLevel:           "error",
		StorageDriver:      "memory",
		KekKeyURIs:         "1=base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4=",
		KekActiveVersion:   1,
		EphemeralRootDir:   t.TempDir(),
		SessionIdleTimeout: 30 * time.Minute,
		MonitorThresholds:  monitorDomain.DefaultThresholds(),
		UpstreamTimeout:    2 * time.Second,
		IdentityJWTSecret:  jwtSecret,
		StepUpURL:          stepUp.URL,
		AlertSinks:         []string{"log"},
		AlertQueueSize:     16,
		AlertSendTimeout:   time.Second,
	}

	container := app.NewContainer(cfg)
	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to build http server")

	handler := httpSrv.GetHandler()
	require.NotNil(t, handler)
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		_ = container.Shutdown(context.Background())
	})

	issuer := identityService.NewJWTVerifier(jwtSecret, "", "")
	tokens := make(map[policyDomain.Role]string)
	for _, role := range []policyDomain.Role{
		policyDomain.RoleDoctor,
		policyDomain.RoleNurse,
		policyDomain.RoleReceptionist,
		policyDomain.RoleAdmin,
	} {
		token, err := issuer.IssueToken(string(role)+"-1", role, "s-"+string(role), time.Hour)
		require.NoError(t, err)
		tokens[role] = token
	}

	return &integrationTestContext{container: container, server: server, tokens: tokens}
}

func TestIntegration_Gateway(t *testing.T) {
	ctx := setupIntegrationTest(t)

	t.Run("health and readiness", func(t *testing.T) {
		resp, _ := ctx.makeRequest(t, http.MethodGet, "/health", "", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := ctx.makeRequest(t, http.MethodGet, "/ready", "", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	})

	t.Run("field round trip", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/resources/patients/p-1/encrypt",
			policyDomain.RoleDoctor, gatewayDTO.EncryptResourceRequest{
				Kind:  "field",
				Field: "medical_history",
				Value: base64.StdEncoding.EncodeToString([]byte("asthma since 2009")),
			}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		var encrypted gatewayDTO.EncryptResourceResponse
		require.NoError(t, json.Unmarshal(body, &encrypted))
		assert.Equal(t, uint(1), encrypted.KekVersion)

		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/resolve", policyDomain.RoleNurse,
			gatewayDTO.ResolveRequest{Kind: "field", Type: "patients", ID: "p-1", Field: "medical_history"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var resolved gatewayDTO.ResolveResponse
		require.NoError(t, json.Unmarshal(body, &resolved))
		plaintext, err := base64.StdEncoding.DecodeString(resolved.Value)
		require.NoError(t, err)
		assert.Equal(t, "asthma since 2009", string(plaintext))
		assert.Greater(t, resolved.AuditSequence, encrypted.AuditSequence)
	})

	t.Run("denials look alike", func(t *testing.T) {
		resolve := gatewayDTO.ResolveRequest{Kind: "field", Type: "patients", ID: "p-1", Field: "medical_history"}

		forbidden, forbiddenBody := ctx.makeRequest(t, http.MethodPost, "/v1/resolve",
			policyDomain.RoleReceptionist, resolve, nil)
		anonymous, anonymousBody := ctx.makeRequest(t, http.MethodPost, "/v1/resolve", "", resolve, nil)
		missing, missingBody := ctx.makeRequest(t, http.MethodPost, "/v1/resolve", policyDomain.RoleNurse,
			gatewayDTO.ResolveRequest{Kind: "field", Type: "patients", ID: "p-404", Field: "medical_history"}, nil)

		assert.Equal(t, http.StatusForbidden, forbidden.StatusCode)
		assert.Equal(t, http.StatusForbidden, anonymous.StatusCode)
		assert.Equal(t, http.StatusForbidden, missing.StatusCode)
		assert.JSONEq(t, string(forbiddenBody), string(anonymousBody))
		assert.JSONEq(t, string(forbiddenBody), string(missingBody))
	})

	t.Run("file artifact lifecycle", func(t *testing.T) {
		report := []byte("%PDF-1.7 lab results")
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/resources/lab_report/r-1/encrypt",
			policyDomain.RoleDoctor, gatewayDTO.EncryptResourceRequest{
				Kind:        "file",
				Value:       base64.StdEncoding.EncodeToString(report),
				ContentType: "application/pdf",
			}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		resolve := gatewayDTO.ResolveRequest{Kind: "file", Type: "lab_report", ID: "r-1"}

		resp, _ = ctx.makeRequest(t, http.MethodPost, "/v1/resolve", policyDomain.RoleDoctor, resolve, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/resolve", policyDomain.RoleDoctor, resolve,
			map[string]string{"X-Step-Up-Code": stepUpCode})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var resolved gatewayDTO.ResolveResponse
		require.NoError(t, json.Unmarshal(body, &resolved))
		require.NotNil(t, resolved.Artifact)
		assert.Empty(t, resolved.Value)

		artifactPath := "/v1/sessions/" + resolved.Artifact.SessionID + "/artifacts/" + resolved.Artifact.Path
		resp, body = ctx.makeRequest(t, http.MethodGet, artifactPath, policyDomain.RoleDoctor, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, report, body)
		assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

		// another principal cannot read it
		resp, _ = ctx.makeRequest(t, http.MethodGet, artifactPath, policyDomain.RoleNurse, nil, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = ctx.makeRequest(t, http.MethodDelete, "/v1/sessions/"+resolved.Artifact.SessionID,
			policyDomain.RoleDoctor, nil, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = ctx.makeRequest(t, http.MethodGet, artifactPath, policyDomain.RoleDoctor, nil, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin endpoints", func(t *testing.T) {
		resp, _ := ctx.makeRequest(t, http.MethodGet, "/v1/audit/verify", policyDomain.RoleDoctor, nil, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/audit/verify", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/audit/verify", policyDomain.RoleAdmin, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var verify map[string]any
		require.NoError(t, json.Unmarshal(body, &verify))
		assert.Equal(t, true, verify["valid"])

		resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/audit/entries?from=1&limit=2",
			policyDomain.RoleAdmin, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var list struct {
			Data []map[string]any `json:"data"`
			Head uint64           `json:"head"`
		}
		require.NoError(t, json.Unmarshal(body, &list))
		assert.Len(t, list.Data, 2)
		assert.Greater(t, list.Head, uint64(2))

		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/monitor/login-events", policyDomain.RoleAdmin,
			map[string]any{"ip": "203.0.113.7", "principal_id": "doctor-1", "success": false}, nil)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	})
}
