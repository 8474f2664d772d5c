package service

import (
	"context"
	"encoding/hex"
	"log/slog"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
)

// Mirror receives every entry after it is durably appended. It is a
// best-effort copy and never a source of truth.
type Mirror interface {
	Mirror(ctx context.Context, entry *auditDomain.Entry)
}

type slogMirror struct {
	logger *slog.Logger
}

// NewSlogMirror mirrors entries to a structured logger.
func NewSlogMirror(logger *slog.Logger) Mirror {
	return &slogMirror{logger: logger}
}

func (m *slogMirror) Mirror(ctx context.Context, entry *auditDomain.Entry) {
	m.logger.LogAttrs(ctx, slog.LevelInfo, "audit entry appended",
		slog.Uint64("sequence", entry.Sequence),
		slog.String("id", entry.ID.String()),
		slog.String("actor_id", entry.ActorID),
		slog.String("action", entry.Action),
		slog.String("resource_type", entry.ResourceType),
		slog.String("resource_id", entry.ResourceID),
		slog.String("status", entry.Status),
		slog.String("entry_hash", hex.EncodeToString(entry.EntryHash)),
	)
}
