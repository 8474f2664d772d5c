package domain

import (
	"encoding/binary"
	"fmt"
)

// blobFormatV1 prefixes the persisted blob layout.
const blobFormatV1 byte = 1

// blobHeaderSize is format (1) + kek version (4) + IV + tag.
const blobHeaderSize = 1 + 4 + NonceSize + TagSize

// EncryptedBlob is the immutable output of one envelope encryption.
//
// The KEK version that wrapped the resource's DEK travels with the blob so that
// data written before a rotation stays decryptable.
type EncryptedBlob struct {
	Ciphertext []byte
	IV         []byte // 12 bytes
	AuthTag    []byte // 16 bytes
	KekVersion uint
}

// Validate checks the fixed-size parts of the blob.
func (b EncryptedBlob) Validate() error {
	if len(b.IV) != NonceSize {
		return fmt.Errorf("%w: iv must be %d bytes, got %d", ErrTamperedOrCorrupt, NonceSize, len(b.IV))
	}
	if len(b.AuthTag) != TagSize {
		return fmt.Errorf("%w: tag must be %d bytes, got %d", ErrTamperedOrCorrupt, TagSize, len(b.AuthTag))
	}
	if b.KekVersion == 0 {
		return fmt.Errorf("%w: missing kek version", ErrTamperedOrCorrupt)
	}
	return nil
}

// MarshalBinary encodes the blob as
// format(1) || kekVersion(4, big endian) || iv(12) || tag(16) || ciphertext.
func (b EncryptedBlob) MarshalBinary() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.KekVersion > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: kek version overflows uint32", ErrInvalidKekVersion)
	}

	buf := make([]byte, 0, blobHeaderSize+len(b.Ciphertext))
	buf = append(buf, blobFormatV1)
	buf = binary.BigEndian.AppendUint32(buf, uint32(b.KekVersion))
	buf = append(buf, b.IV...)
	buf = append(buf, b.AuthTag...)
	buf = append(buf, b.Ciphertext...)
	return buf, nil
}

// UnmarshalBinary decodes a blob written by MarshalBinary.
func (b *EncryptedBlob) UnmarshalBinary(data []byte) error {
	if len(data) < blobHeaderSize {
		return fmt.Errorf("%w: blob too short", ErrTamperedOrCorrupt)
	}
	if data[0] != blobFormatV1 {
		return fmt.Errorf("%w: unknown blob format %d", ErrTamperedOrCorrupt, data[0])
	}

	offset := 1
	b.KekVersion = uint(binary.BigEndian.Uint32(data[offset:]))
	offset += 4
	b.IV = append([]byte(nil), data[offset:offset+NonceSize]...)
	offset += NonceSize
	b.AuthTag = append([]byte(nil), data[offset:offset+TagSize]...)
	offset += TagSize
	b.Ciphertext = append([]byte(nil), data[offset:]...)

	return b.Validate()
}
