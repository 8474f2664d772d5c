// Package http exposes the audit chain for administrators.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
	auditUseCase "github.com/allisson/gatekeeper/internal/audit/usecase"
	"github.com/allisson/gatekeeper/internal/httputil"
)

// AuditHandler serves chain verification and entry listing.
type AuditHandler struct {
	auditLog auditUseCase.AuditLog
	logger   *slog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(auditLog auditUseCase.AuditLog, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		auditLog: auditLog,
		logger:   logger,
	}
}

// entryResponse is the JSON view of one audit entry.
type entryResponse struct {
	ID           string    `json:"id"`
	Sequence     uint64    `json:"sequence"`
	ActorID      string    `json:"actor_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	PrevHash     []byte    `json:"prev_hash"`
	EntryHash    []byte    `json:"entry_hash"`
}

type listResponse struct {
	Data []entryResponse `json:"data"`
	Head uint64          `json:"head"`
}

// VerifyHandler recomputes the chain over a sequence range.
// GET /v1/audit/verify?from=N&to=M. A broken chain answers 409 with the report.
func (h *AuditHandler) VerifyHandler(c *gin.Context) {
	from, to, err := httputil.ParseSequenceRange(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	result, err := h.auditLog.VerifyChain(c.Request.Context(), from, to)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		h.logger.Error("audit chain verification failed",
			slog.Uint64("broken_at", result.BrokenAt),
			slog.String("reason", result.Reason),
			slog.Bool("security_fault", true),
		)
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

// ListHandler pages through entries in chain order.
// GET /v1/audit/entries?from=N&limit=M
func (h *AuditHandler) ListHandler(c *gin.Context) {
	from, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	head, err := h.auditLog.Head(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	entries, err := h.auditLog.List(c.Request.Context(), from, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, mapEntries(entries, head))
}

func mapEntries(entries []*auditDomain.Entry, head auditDomain.Head) listResponse {
	data := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, entryResponse{
			ID:           entry.ID.String(),
			Sequence:     entry.Sequence,
			ActorID:      entry.ActorID,
			Action:       entry.Action,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			Status:       entry.Status,
			Timestamp:    entry.Timestamp,
			PrevHash:     entry.PrevHash,
			EntryHash:    entry.EntryHash,
		})
	}
	return listResponse{Data: data, Head: head.Sequence}
}
