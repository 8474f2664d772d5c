// Package service computes audit chain hashes.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
)

// chainKeyInfo versions the HKDF derivation of the keyed chain.
const chainKeyInfo = "audit-chain-hmac-v1"

// ChainHasher computes EntryHash = H(prevHash || canonical(entry)).
type ChainHasher interface {
	Hash(prevHash []byte, entry *auditDomain.Entry) []byte
}

type chainHasher struct {
	newHash func() hash.Hash
}

// NewSHA256Hasher returns an unkeyed SHA-256 chain hasher.
func NewSHA256Hasher() ChainHasher {
	return &chainHasher{newHash: sha256.New}
}

// NewHMACHasher returns an HMAC-SHA256 chain hasher whose key is derived from
// secret with HKDF-SHA256. Without the secret an attacker who rewrites the
// whole log cannot recompute a valid chain.
func NewHMACHasher(secret []byte) (ChainHasher, error) {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(chainKeyInfo)), key); err != nil {
		return nil, err
	}
	return &chainHasher{newHash: func() hash.Hash { return hmac.New(sha256.New, key) }}, nil
}

// Hash implements ChainHasher.
func (c *chainHasher) Hash(prevHash []byte, entry *auditDomain.Entry) []byte {
	h := c.newHash()
	h.Write(prevHash)
	h.Write(canonicalize(entry))
	return h.Sum(nil)
}

// canonicalize serializes every field except PrevHash and EntryHash.
// Variable-length fields carry a 4-byte big-endian length prefix.
func canonicalize(entry *auditDomain.Entry) []byte {
	buf := make([]byte, 0, 256)
	buf = binary.BigEndian.AppendUint64(buf, entry.Sequence)
	buf = append(buf, entry.ID[:]...)
	buf = appendLengthPrefixed(buf, entry.ActorID)
	buf = appendLengthPrefixed(buf, entry.Action)
	buf = appendLengthPrefixed(buf, entry.ResourceType)
	buf = appendLengthPrefixed(buf, entry.ResourceID)
	buf = appendLengthPrefixed(buf, entry.Status)
	buf = binary.BigEndian.AppendUint64(buf, uint64(entry.Timestamp.UnixNano()))
	return buf
}

func appendLengthPrefixed(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
