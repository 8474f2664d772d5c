// Package repository persists audit chain entries in the key-value store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
	"github.com/allisson/gatekeeper/internal/errors"
	"github.com/allisson/gatekeeper/internal/storage"
)

const (
	entryPrefix = "audit/entries/"
	headKey     = "audit/head"
)

// KVAuditRepository stores one key per entry, zero-padded by sequence so key
// order equals chain order, plus a head pointer updated in the same atomic
// write as the entry it points at.
type KVAuditRepository struct {
	store storage.Store
}

// NewKVAuditRepository creates a KVAuditRepository.
func NewKVAuditRepository(store storage.Store) *KVAuditRepository {
	return &KVAuditRepository{store: store}
}

func entryKey(sequence uint64) string {
	return fmt.Sprintf("%s%020d", entryPrefix, sequence)
}

// Head returns the current head, or a zero Head for an empty log.
func (r *KVAuditRepository) Head(ctx context.Context) (auditDomain.Head, error) {
	data, err := r.store.Get(ctx, headKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return auditDomain.Head{}, nil
	}
	if err != nil {
		return auditDomain.Head{}, errors.Wrap(err, "failed to read audit head")
	}

	var head auditDomain.Head
	if err := json.Unmarshal(data, &head); err != nil {
		return auditDomain.Head{}, errors.Wrap(err, "failed to decode audit head")
	}
	return head, nil
}

// Append writes entry and advances the head to it. The entry key is
// create-only so an existing sequence is never overwritten.
func (r *KVAuditRepository) Append(ctx context.Context, entry *auditDomain.Entry) error {
	entryData, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to encode audit entry")
	}
	headData, err := json.Marshal(auditDomain.Head{Sequence: entry.Sequence, Hash: entry.EntryHash})
	if err != nil {
		return errors.Wrap(err, "failed to encode audit head")
	}

	return r.store.Apply(ctx,
		storage.Op{Key: entryKey(entry.Sequence), Value: entryData, CreateOnly: true},
		storage.Op{Key: headKey, Value: headData},
	)
}

// Get returns the entry at sequence or ErrEntryNotFound.
func (r *KVAuditRepository) Get(ctx context.Context, sequence uint64) (*auditDomain.Entry, error) {
	data, err := r.store.Get(ctx, entryKey(sequence))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, auditDomain.ErrEntryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit entry")
	}
	return decodeEntry(data)
}

// List returns up to limit entries starting at sequence from, in chain order.
func (r *KVAuditRepository) List(ctx context.Context, from uint64, limit int) ([]*auditDomain.Entry, error) {
	entries := make([]*auditDomain.Entry, 0)
	err := r.store.Scan(ctx, entryPrefix, entryKey(from), limit, func(_ string, value []byte) error {
		entry, err := decodeEntry(value)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit entries")
	}
	return entries, nil
}

func decodeEntry(data []byte) (*auditDomain.Entry, error) {
	var entry auditDomain.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errors.Wrap(err, "failed to decode audit entry")
	}
	return &entry, nil
}
