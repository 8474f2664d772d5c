// Package http provides the HTTP surface of the decryption gateway.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	"github.com/allisson/gatekeeper/internal/gateway/http/dto"
	gatewayUseCase "github.com/allisson/gatekeeper/internal/gateway/usecase"
	"github.com/allisson/gatekeeper/internal/httputil"
	identityHTTP "github.com/allisson/gatekeeper/internal/identity/http"
	customValidation "github.com/allisson/gatekeeper/internal/validation"
)

// StepUpHeader carries the second-factor code.
const StepUpHeader = "X-Step-Up-Code"

// GatewayHandler handles encryption, resolution, artifact and logout requests.
// A missing bearer token is still passed through so the attempt is audited.
type GatewayHandler struct {
	gateway gatewayUseCase.Gateway
	logger  *slog.Logger
}

// NewGatewayHandler creates a new gateway handler.
func NewGatewayHandler(gateway gatewayUseCase.Gateway, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// EncryptHandler stores a field value or file under a fresh DEK.
// POST /v1/resources/:type/:id/encrypt
func (h *GatewayHandler) EncryptHandler(c *gin.Context) {
	var req dto.EncryptResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Value)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 value: %w", err), h.logger)
		return
	}
	defer cryptoDomain.Zero(plaintext)

	token, _ := identityHTTP.BearerToken(c)
	result, err := h.gateway.Encrypt(c.Request.Context(), gatewayDomain.EncryptRequest{
		Token:       token,
		SourceIP:    c.ClientIP(),
		Resource:    req.Ref(c.Param("type"), c.Param("id")),
		Plaintext:   plaintext,
		ContentType: req.ContentType,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapEncryptResult(result))
}

// ResolveHandler decrypts a field or writes a file into the caller's session.
// POST /v1/resolve
func (h *GatewayHandler) ResolveHandler(c *gin.Context) {
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	token, _ := identityHTTP.BearerToken(c)
	result, err := h.gateway.Resolve(c.Request.Context(), gatewayDomain.ResolveRequest{
		Token:      token,
		StepUpCode: c.GetHeader(StepUpHeader),
		SourceIP:   c.ClientIP(),
		SessionID:  req.SessionID,
		Resource:   req.Ref(),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(result.Plaintext)

	c.JSON(http.StatusOK, dto.MapResolveResult(result))
}

// ReadArtifactHandler streams a decrypted file from the caller's session.
// GET /v1/sessions/:id/artifacts/*path
func (h *GatewayHandler) ReadArtifactHandler(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("path cannot be empty"), h.logger)
		return
	}

	token, _ := identityHTTP.BearerToken(c)
	data, err := h.gateway.ReadArtifact(c.Request.Context(), gatewayDomain.ArtifactRequest{
		Token:     token,
		SourceIP:  c.ClientIP(),
		SessionID: c.Param("id"),
		Path:      path,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(data)

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// LogoutHandler destroys the session and every artifact in it.
// DELETE /v1/sessions/:id
func (h *GatewayHandler) LogoutHandler(c *gin.Context) {
	token, _ := identityHTTP.BearerToken(c)
	err := h.gateway.Logout(c.Request.Context(), gatewayDomain.LogoutRequest{
		Token:     token,
		SourceIP:  c.ClientIP(),
		SessionID: c.Param("id"),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}
