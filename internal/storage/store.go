// Package storage provides the durable key-value store that holds encrypted
// resources and audit chain entries. Values are opaque byte strings.
package storage

import (
	"bytes"
	"context"

	"github.com/allisson/gatekeeper/internal/errors"
)

var (
	// ErrKeyNotFound indicates the key does not exist.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")

	// ErrKeyExists indicates a create-only write hit an existing key.
	ErrKeyExists = errors.Wrap(errors.ErrConflict, "key already exists")

	// ErrKeyChanged indicates a conditional write found a value other than
	// the expected one.
	ErrKeyChanged = errors.Wrap(errors.ErrConflict, "key changed")

	// ErrEmptyKey indicates an empty key was used.
	ErrEmptyKey = errors.Wrap(errors.ErrInvalidInput, "empty key")
)

// Op is one write inside an atomic Apply.
type Op struct {
	Key   string
	Value []byte
	// CreateOnly fails the whole Apply with ErrKeyExists when Key is present.
	CreateOnly bool
	// Expect, when non-nil, fails the whole Apply with ErrKeyChanged unless
	// the current value of Key equals it byte for byte.
	Expect []byte
}

// Store is an opaque key-value store.
type Store interface {
	// Get returns the value for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Apply performs every op atomically: all are written or none.
	Apply(ctx context.Context, ops ...Op) error

	// Scan calls fn for keys with prefix, starting at start (inclusive), in
	// ascending key order, up to limit entries (0 means no limit).
	Scan(ctx context.Context, prefix, start string, limit int, fn func(key string, value []byte) error) error

	// Close releases the store.
	Close() error
}

func checkExpected(op Op, current []byte, found bool) error {
	if op.Expect == nil {
		return nil
	}
	if !found || !bytes.Equal(current, op.Expect) {
		return ErrKeyChanged
	}
	return nil
}

func validateOps(ops []Op) error {
	for _, op := range ops {
		if op.Key == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
