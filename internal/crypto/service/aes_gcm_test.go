package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
)

func newTestCipher(t *testing.T) *AESGCMCipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := NewAESGCM(key)
	require.NoError(t, err)
	return c
}

func TestNewAESGCM(t *testing.T) {
	_, err := NewAESGCM(make([]byte, 16))
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)

	_, err = NewAESGCM(make([]byte, 64))
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
}

func TestAESGCMCipher_EncryptDecrypt(t *testing.T) {
	c := newTestCipher(t)
	aad := []byte("patients:42")

	ciphertext, nonce, tag, err := c.Encrypt([]byte("history"), aad)
	require.NoError(t, err)
	assert.Len(t, nonce, cryptoDomain.NonceSize)
	assert.Len(t, tag, cryptoDomain.TagSize)
	assert.Len(t, ciphertext, len("history"))

	plaintext, err := c.Decrypt(ciphertext, nonce, tag, aad)
	require.NoError(t, err)
	assert.Equal(t, []byte("history"), plaintext)

	t.Run("wrong aad", func(t *testing.T) {
		_, err := c.Decrypt(ciphertext, nonce, tag, []byte("patients:43"))
		assert.ErrorIs(t, err, cryptoDomain.ErrTamperedOrCorrupt)
	})

	t.Run("short tag", func(t *testing.T) {
		_, err := c.Decrypt(ciphertext, nonce, tag[:8], aad)
		assert.ErrorIs(t, err, cryptoDomain.ErrTamperedOrCorrupt)
	})
}

func TestAESGCMCipher_FreshNonce(t *testing.T) {
	c := newTestCipher(t)
	_, n1, _, err := c.Encrypt([]byte("x"), nil)
	require.NoError(t, err)
	_, n2, _, err := c.Encrypt([]byte("x"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
}
