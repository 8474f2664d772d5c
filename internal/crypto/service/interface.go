// Package service implements envelope encryption: AES-256-GCM over per-resource DEKs,
// with DEKs wrapped by versioned KEK keepers opened through gocloud.dev/secrets.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
)

// AEAD defines authenticated encryption with a detached tag.
type AEAD interface {
	// Encrypt seals plaintext with aad under a fresh random nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce, tag []byte, err error)

	// Decrypt opens ciphertext, verifying tag and aad.
	Decrypt(ciphertext, nonce, tag, aad []byte) ([]byte, error)
}

// Envelope is the KMS contract consumed by the gateway.
type Envelope interface {
	// Encrypt generates a fresh DEK, seals plaintext under it and wraps the DEK with
	// the active KEK version.
	Encrypt(ctx context.Context, plaintext, aad []byte) (cryptoDomain.EncryptedBlob, []byte, error)

	// Decrypt unwraps the DEK with the blob's KEK version and opens the blob.
	Decrypt(ctx context.Context, blob cryptoDomain.EncryptedBlob, wrappedDEK, aad []byte) ([]byte, error)

	// Rewrap re-wraps a DEK under the active KEK version without touching the ciphertext.
	Rewrap(
		ctx context.Context,
		blob cryptoDomain.EncryptedBlob,
		wrappedDEK []byte,
	) (cryptoDomain.EncryptedBlob, []byte, error)

	// RotateKEK registers a new active KEK version for future Encrypt calls.
	RotateKEK(ctx context.Context, kek cryptoDomain.Kek) error

	// ActiveVersion returns the KEK version used by Encrypt.
	ActiveVersion() uint
}
