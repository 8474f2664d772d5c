package usecase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
	auditService "github.com/allisson/gatekeeper/internal/audit/service"
	"github.com/allisson/gatekeeper/internal/errors"
)

const (
	verifyBatchSize = 500
	maxListLimit    = 1000
)

type auditLog struct {
	repo   AuditRepository
	hasher auditService.ChainHasher
	mirror auditService.Mirror
	now    func() time.Time

	// mu serializes writers on the chain head.
	mu   sync.Mutex
	head *auditDomain.Head
}

// NewAuditLog creates an AuditLog. mirror may be nil.
func NewAuditLog(
	repo AuditRepository,
	hasher auditService.ChainHasher,
	mirror auditService.Mirror,
) AuditLog {
	return &auditLog{
		repo:   repo,
		hasher: hasher,
		mirror: mirror,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *auditLog) Append(ctx context.Context, entry *auditDomain.Entry) (*auditDomain.Entry, error) {
	if entry == nil || entry.Action == "" || entry.Status == "" {
		return nil, auditDomain.ErrInvalidEntry
	}

	a.mu.Lock()
	if a.head == nil {
		head, err := a.repo.Head(ctx)
		if err != nil {
			a.mu.Unlock()
			return nil, err
		}
		a.head = &head
	}

	prevHash := a.head.Hash
	if a.head.Sequence == 0 {
		prevHash = auditDomain.GenesisHash()
	}

	appended := *entry
	appended.ID = uuid.Must(uuid.NewV7())
	appended.Sequence = a.head.Sequence + 1
	appended.Timestamp = a.now()
	appended.PrevHash = prevHash
	appended.EntryHash = a.hasher.Hash(prevHash, &appended)

	if err := a.repo.Append(ctx, &appended); err != nil {
		// Another writer may own the store; reload the head next time.
		a.head = nil
		a.mu.Unlock()
		return nil, errors.Wrap(err, "failed to append audit entry")
	}
	a.head = &auditDomain.Head{Sequence: appended.Sequence, Hash: appended.EntryHash}
	a.mu.Unlock()

	if a.mirror != nil {
		a.mirror.Mirror(ctx, &appended)
	}
	return &appended, nil
}

func (a *auditLog) VerifyChain(ctx context.Context, from, to uint64) (*auditDomain.VerifyResult, error) {
	head, err := a.repo.Head(ctx)
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	if to == 0 {
		to = head.Sequence
	}

	result := &auditDomain.VerifyResult{Valid: true, From: from, To: to}
	if head.Sequence == 0 && to == 0 {
		return result, nil
	}
	if from > to || to > head.Sequence {
		return nil, auditDomain.ErrInvalidRange
	}

	prevHash := auditDomain.GenesisHash()
	if from > 1 {
		prev, err := a.repo.Get(ctx, from-1)
		if err != nil {
			return nil, err
		}
		prevHash = prev.EntryHash
	}

	broken := func(seq uint64, reason string) (*auditDomain.VerifyResult, error) {
		result.Valid = false
		result.BrokenAt = seq
		result.Reason = reason
		return result, nil
	}

	expected := from
	for expected <= to {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		limit := verifyBatchSize
		if remaining := to - expected + 1; remaining < uint64(limit) {
			limit = int(remaining)
		}
		entries, err := a.repo.List(ctx, expected, limit)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return broken(expected, "missing entry")
		}

		for _, entry := range entries {
			if entry.Sequence != expected {
				return broken(expected, "missing entry")
			}
			if !bytes.Equal(entry.PrevHash, prevHash) {
				return broken(expected, "prev hash does not match predecessor")
			}
			if !hmac.Equal(entry.EntryHash, a.hasher.Hash(entry.PrevHash, entry)) {
				return broken(expected, "entry hash mismatch")
			}
			prevHash = entry.EntryHash
			result.Checked++
			expected++
		}
	}

	if to == head.Sequence && !bytes.Equal(head.Hash, prevHash) {
		return broken(to, "head does not match last entry")
	}
	return result, nil
}

func (a *auditLog) Head(ctx context.Context) (auditDomain.Head, error) {
	return a.repo.Head(ctx)
}

func (a *auditLog) List(ctx context.Context, from uint64, limit int) ([]*auditDomain.Entry, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, auditDomain.ErrInvalidRange
	}
	if from == 0 {
		from = 1
	}
	return a.repo.List(ctx, from, limit)
}
