package service

import (
	"context"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
)

// EnvelopeService implements Envelope on top of a KeyRing.
//
// A DEK exists unwrapped only inside a single Encrypt, Decrypt or Rewrap call and
// is zeroed before the call returns. Nothing is cached between calls.
type EnvelopeService struct {
	ring *KeyRing
}

// NewEnvelopeService creates an EnvelopeService.
func NewEnvelopeService(ring *KeyRing) *EnvelopeService {
	return &EnvelopeService{ring: ring}
}

// Encrypt implements Envelope.
func (s *EnvelopeService) Encrypt(
	ctx context.Context,
	plaintext, aad []byte,
) (cryptoDomain.EncryptedBlob, []byte, error) {
	version := s.ring.Active()
	if version == 0 {
		return cryptoDomain.EncryptedBlob{}, nil, cryptoDomain.ErrNoActiveKek
	}
	keeper, err := s.ring.Keeper(version)
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, err
	}

	dek := make([]byte, cryptoDomain.KeySize)
	defer cryptoDomain.Zero(dek)
	if _, err := rand.Read(dek); err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, fmt.Errorf("failed to generate DEK: %w", err)
	}

	aead, err := NewAESGCM(dek)
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, err
	}

	ciphertext, nonce, tag, err := aead.Encrypt(plaintext, aad)
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, fmt.Errorf("failed to encrypt resource: %w", err)
	}

	wrapped, err := keeper.Encrypt(ctx, dek)
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, fmt.Errorf("failed to wrap DEK: %w", err)
	}

	blob := cryptoDomain.EncryptedBlob{
		Ciphertext: ciphertext,
		IV:         nonce,
		AuthTag:    tag,
		KekVersion: version,
	}
	return blob, wrapped, nil
}

// Decrypt implements Envelope.
func (s *EnvelopeService) Decrypt(
	ctx context.Context,
	blob cryptoDomain.EncryptedBlob,
	wrappedDEK, aad []byte,
) ([]byte, error) {
	if err := blob.Validate(); err != nil {
		return nil, err
	}

	dek, err := s.unwrap(ctx, blob.KekVersion, wrappedDEK)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	aead, err := NewAESGCM(dek)
	if err != nil {
		return nil, err
	}
	return aead.Decrypt(blob.Ciphertext, blob.IV, blob.AuthTag, aad)
}

// Rewrap implements Envelope. Blobs already under the active version are returned unchanged.
func (s *EnvelopeService) Rewrap(
	ctx context.Context,
	blob cryptoDomain.EncryptedBlob,
	wrappedDEK []byte,
) (cryptoDomain.EncryptedBlob, []byte, error) {
	active := s.ring.Active()
	if active == 0 {
		return cryptoDomain.EncryptedBlob{}, nil, cryptoDomain.ErrNoActiveKek
	}
	if blob.KekVersion == active {
		return blob, wrappedDEK, nil
	}

	dek, err := s.unwrap(ctx, blob.KekVersion, wrappedDEK)
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, err
	}
	defer cryptoDomain.Zero(dek)

	keeper, err := s.ring.Keeper(active)
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, err
	}
	rewrapped, err := keeper.Encrypt(ctx, dek)
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, nil, fmt.Errorf("failed to wrap DEK: %w", err)
	}

	blob.KekVersion = active
	return blob, rewrapped, nil
}

// RotateKEK implements Envelope. Existing wrapped DEKs are left alone.
func (s *EnvelopeService) RotateKEK(ctx context.Context, kek cryptoDomain.Kek) error {
	return s.ring.Rotate(ctx, kek)
}

// ActiveVersion implements Envelope.
func (s *EnvelopeService) ActiveVersion() uint {
	return s.ring.Active()
}

func (s *EnvelopeService) unwrap(ctx context.Context, version uint, wrappedDEK []byte) ([]byte, error) {
	keeper, err := s.ring.Keeper(version)
	if err != nil {
		return nil, err
	}

	dek, err := keeper.Decrypt(ctx, wrappedDEK)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: unwrap DEK", cryptoDomain.ErrTamperedOrCorrupt)
	}
	if len(dek) != cryptoDomain.KeySize {
		cryptoDomain.Zero(dek)
		return nil, fmt.Errorf("%w: unwrapped DEK has %d bytes", cryptoDomain.ErrTamperedOrCorrupt, len(dek))
	}
	return dek, nil
}
