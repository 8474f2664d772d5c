package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
)

// AESGCMCipher implements AEAD using AES-256-GCM with a 96-bit nonce and a
// 128-bit tag returned separately from the ciphertext.
//
// The cipher is safe for concurrent use. Each DEK encrypts exactly one resource,
// so a random nonce never repeats under the same key.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithTagSize(block, cryptoDomain.TagSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt seals plaintext and splits the trailing authentication tag off the
// ciphertext so both can be stored in their own blob fields.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce, tag []byte, err error) {
	nonce = make([]byte, cryptoDomain.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := a.aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - cryptoDomain.TagSize
	return sealed[:split], nonce, sealed[split:], nil
}

// Decrypt verifies tag and aad before returning any plaintext. Every failure is
// reported as ErrTamperedOrCorrupt.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, tag, aad []byte) ([]byte, error) {
	if len(nonce) != cryptoDomain.NonceSize || len(tag) != cryptoDomain.TagSize {
		return nil, cryptoDomain.ErrTamperedOrCorrupt
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := a.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, cryptoDomain.ErrTamperedOrCorrupt
	}
	return plaintext, nil
}
