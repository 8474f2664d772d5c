// Package usecase implements the append-only, hash-chained audit log.
package usecase

import (
	"context"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
)

// AuditRepository persists entries and the head pointer.
type AuditRepository interface {
	// Head returns the current head, zero for an empty log.
	Head(ctx context.Context) (auditDomain.Head, error)

	// Append atomically writes entry and moves the head to it.
	Append(ctx context.Context, entry *auditDomain.Entry) error

	// Get returns the entry at sequence. Returns ErrEntryNotFound if absent.
	Get(ctx context.Context, sequence uint64) (*auditDomain.Entry, error)

	// List returns up to limit entries starting at from, in chain order.
	List(ctx context.Context, from uint64, limit int) ([]*auditDomain.Entry, error)
}

// AuditLog is the write-once audit contract. There is no update or delete.
type AuditLog interface {
	// Append assigns ID, sequence, timestamp and hashes, then appends the
	// entry after the current head. Concurrent callers are totally ordered.
	Append(ctx context.Context, entry *auditDomain.Entry) (*auditDomain.Entry, error)

	// VerifyChain recomputes hashes and linkage for sequences from..to
	// (inclusive). from=0 means the first entry and to=0 means the head.
	VerifyChain(ctx context.Context, from, to uint64) (*auditDomain.VerifyResult, error)

	// Head returns the current head pointer.
	Head(ctx context.Context) (auditDomain.Head, error)

	// List returns up to limit entries starting at sequence from.
	List(ctx context.Context, from uint64, limit int) ([]*auditDomain.Entry, error)
}
