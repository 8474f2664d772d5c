package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBlob() EncryptedBlob {
	return EncryptedBlob{
		Ciphertext: []byte("ciphertext"),
		IV:         bytes.Repeat([]byte{0x01}, NonceSize),
		AuthTag:    bytes.Repeat([]byte{0x02}, TagSize),
		KekVersion: 7,
	}
}

func TestEncryptedBlob_Binary(t *testing.T) {
	t.Run("persisted layout keeps the kek version", func(t *testing.T) {
		data, err := validBlob().MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, blobFormatV1, data[0])
		assert.Equal(t, []byte{0, 0, 0, 7}, data[1:5])

		var decoded EncryptedBlob
		require.NoError(t, decoded.UnmarshalBinary(data))
		assert.Equal(t, validBlob(), decoded)
	})

	t.Run("empty ciphertext is allowed", func(t *testing.T) {
		blob := validBlob()
		blob.Ciphertext = []byte{}
		data, err := blob.MarshalBinary()
		require.NoError(t, err)

		var decoded EncryptedBlob
		require.NoError(t, decoded.UnmarshalBinary(data))
		assert.Empty(t, decoded.Ciphertext)
	})

	t.Run("truncated data is corrupt", func(t *testing.T) {
		var decoded EncryptedBlob
		err := decoded.UnmarshalBinary([]byte{blobFormatV1, 0, 0})
		assert.ErrorIs(t, err, ErrTamperedOrCorrupt)
	})

	t.Run("unknown format is corrupt", func(t *testing.T) {
		data, err := validBlob().MarshalBinary()
		require.NoError(t, err)
		data[0] = 9

		var decoded EncryptedBlob
		assert.ErrorIs(t, decoded.UnmarshalBinary(data), ErrTamperedOrCorrupt)
	})
}

func TestEncryptedBlob_Validate(t *testing.T) {
	blob := validBlob()
	blob.IV = blob.IV[:8]
	assert.ErrorIs(t, blob.Validate(), ErrTamperedOrCorrupt)

	blob = validBlob()
	blob.AuthTag = nil
	assert.ErrorIs(t, blob.Validate(), ErrTamperedOrCorrupt)

	blob = validBlob()
	blob.KekVersion = 0
	assert.ErrorIs(t, blob.Validate(), ErrTamperedOrCorrupt)
}
