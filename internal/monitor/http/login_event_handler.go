// Package http accepts login outcomes from the external login service.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	"github.com/allisson/gatekeeper/internal/httputil"
	customValidation "github.com/allisson/gatekeeper/internal/validation"
)

// LoginRecorder feeds login outcomes into the sliding windows.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, ip, principalID string, success bool)
}

// LoginEventRequest is one login attempt observed by the login service.
type LoginEventRequest struct {
	IP          string `json:"ip"`
	PrincipalID string `json:"principal_id"`
	Success     bool   `json:"success"`
}

var ipAddress = validation.NewStringRuleWithError(
	func(s string) bool { return net.ParseIP(s) != nil },
	validation.NewError("validation_ip", "must be a valid IP address"),
)

// Validate checks the request body.
func (r *LoginEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.IP, validation.Required, ipAddress),
		validation.Field(&r.PrincipalID, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
	)
}

// LoginEventHandler records login outcomes.
type LoginEventHandler struct {
	recorder LoginRecorder
	logger   *slog.Logger
}

// NewLoginEventHandler creates a new login event handler.
func NewLoginEventHandler(recorder LoginRecorder, logger *slog.Logger) *LoginEventHandler {
	return &LoginEventHandler{recorder: recorder, logger: logger}
}

// RecordHandler accepts one login event.
// POST /v1/monitor/login-events
func (h *LoginEventHandler) RecordHandler(c *gin.Context) {
	var req LoginEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	h.recorder.RecordLogin(c.Request.Context(), req.IP, req.PrincipalID, req.Success)
	c.Status(http.StatusAccepted)
}
