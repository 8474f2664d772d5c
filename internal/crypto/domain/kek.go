// Package domain defines the envelope encryption models: versioned KEK references,
// per-resource DEKs and the encrypted blobs they produce.
//
// The hierarchy is KEK (external, versioned) → DEK (fresh per resource) → data.
// Only an opaque reference to each KEK version is held; the key material never
// enters this process.
package domain

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kek is a reference to one version of the externally held key encryption key.
type Kek struct {
	Version   uint   // Monotonic version recorded in every blob it wraps
	KeyURI    string // Keeper URI (base64key://, hashivault://, awskms://, gcpkms://, azurekeyvault://)
	CreatedAt time.Time
}

// KMSKeeper wraps and unwraps DEKs under one KEK version.
// *secrets.Keeper from gocloud.dev satisfies it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// ParseKekList parses a comma separated "version=uri" list, e.g.
//
//	1=base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4=,2=hashivault://gatekeeper
//
// The result is ordered by version ascending. Duplicate versions are rejected.
func ParseKekList(raw string) ([]Kek, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidKekFormat)
	}

	seen := make(map[uint]struct{})
	keks := make([]Kek, 0)
	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(p) != 2 || p[1] == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKekFormat, part)
		}
		version, err := strconv.ParseUint(p[0], 10, 32)
		if err != nil || version == 0 {
			return nil, fmt.Errorf("%w: bad version %q", ErrInvalidKekFormat, p[0])
		}
		if _, dup := seen[uint(version)]; dup {
			return nil, fmt.Errorf("%w: version %d", ErrKekAlreadyExists, version)
		}
		seen[uint(version)] = struct{}{}
		keks = append(keks, Kek{Version: uint(version), KeyURI: p[1], CreatedAt: time.Now().UTC()})
	}

	sort.Slice(keks, func(i, j int) bool { return keks[i].Version < keks[j].Version })
	return keks, nil
}

// Zero overwrites key material with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
