// Package domain defines the hash-chained audit log entry and its errors.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/gatekeeper/internal/errors"
)

// HashSize is the length in bytes of PrevHash and EntryHash.
const HashSize = 32

// Status values written by callers other than the gateway denial reasons.
const (
	StatusSuccess = "success"
)

// Entry is one append-only record of an access decision. EntryHash covers
// PrevHash and every other field, so editing any stored entry breaks the chain.
type Entry struct {
	ID           uuid.UUID `json:"id"`
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

// Head points at the last appended entry. A zero Head is the genesis state.
type Head struct {
	Sequence uint64 `json:"sequence"`
	Hash     []byte `json:"hash"`
}

// GenesisHash is the PrevHash of the first entry.
func GenesisHash() []byte {
	return make([]byte, HashSize)
}

// VerifyResult reports the outcome of a chain verification.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	From    uint64 `json:"from"`
	To      uint64 `json:"to"`
	Checked uint64 `json:"checked"`
	// BrokenAt is the first sequence that failed verification, 0 when Valid.
	BrokenAt uint64 `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

var (
	// ErrEntryNotFound indicates no entry exists at the requested sequence.
	ErrEntryNotFound = errors.Wrap(errors.ErrNotFound, "audit entry not found")

	// ErrInvalidRange indicates a verification or listing range is malformed.
	ErrInvalidRange = errors.Wrap(errors.ErrInvalidInput, "invalid audit range")

	// ErrInvalidEntry indicates an entry is missing required fields.
	ErrInvalidEntry = errors.Wrap(errors.ErrInvalidInput, "invalid audit entry")
)
