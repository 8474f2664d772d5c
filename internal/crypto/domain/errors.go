package domain

import (
	"github.com/allisson/gatekeeper/internal/errors"
)

// Envelope encryption error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors
// so callers can branch on intent without knowing the cipher internals.
var (
	// ErrInvalidKeySize indicates a DEK is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrTamperedOrCorrupt indicates authentication of a blob or wrapped DEK failed.
	//
	// This covers a modified ciphertext, IV or tag, an associated data mismatch
	// (a blob presented for a different resource) and a wrapped DEK that the KEK
	// cannot open. The exact cause is deliberately not distinguished.
	ErrTamperedOrCorrupt = errors.Wrap(errors.ErrInvalidInput, "tampered or corrupt ciphertext")

	// ErrKeyNotFound indicates the KEK version recorded in a blob is not registered.
	// Not retryable.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "kek version not found")

	// ErrKekAlreadyExists indicates a KEK version is already registered in the ring.
	ErrKekAlreadyExists = errors.Wrap(errors.ErrConflict, "kek version already exists")

	// ErrInvalidKekVersion indicates a rotation target that is not newer than the active version.
	ErrInvalidKekVersion = errors.Wrap(errors.ErrInvalidInput, "invalid kek version")

	// ErrInvalidKekFormat indicates a malformed "version=uri" KEK list.
	ErrInvalidKekFormat = errors.Wrap(errors.ErrInvalidInput, "invalid kek list format")

	// ErrNoActiveKek indicates the key ring has no active version to encrypt with.
	ErrNoActiveKek = errors.Wrap(errors.ErrNotFound, "no active kek")
)
