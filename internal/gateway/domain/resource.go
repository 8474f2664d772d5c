// Package domain defines the decryption gateway's requests, results, denial
// reasons and per-request state machine.
package domain

import (
	"encoding/binary"
	"regexp"
	"strings"
	"time"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
	"github.com/allisson/gatekeeper/internal/errors"
)

// ResourceKind separates structured field values from whole files.
type ResourceKind string

const (
	KindField ResourceKind = "field"
	KindFile  ResourceKind = "file"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ErrInvalidResource indicates a malformed resource reference.
var ErrInvalidResource = errors.Wrap(errors.ErrInvalidInput, "invalid resource reference")

// ErrResourceNotFound indicates no encrypted resource is stored under a reference.
var ErrResourceNotFound = errors.Wrap(errors.ErrNotFound, "resource not found")

// ErrResourceChanged indicates a conditional replace lost to a concurrent write.
var ErrResourceChanged = errors.Wrap(errors.ErrConflict, "resource changed")

// ResourceRef names one encrypted resource. For fields Type is the table and
// Field the column; for files Type is the file resource type.
type ResourceRef struct {
	Kind  ResourceKind `json:"kind"`
	Type  string       `json:"type"`
	ID    string       `json:"id"`
	Field string       `json:"field,omitempty"`
}

// FieldRef references field of the row id in table.
func FieldRef(table, id, field string) ResourceRef {
	return ResourceRef{Kind: KindField, Type: table, ID: id, Field: field}
}

// FileRef references the file id of resourceType.
func FileRef(resourceType, id string) ResourceRef {
	return ResourceRef{Kind: KindFile, Type: resourceType, ID: id}
}

// Validate checks the reference is well formed.
func (r ResourceRef) Validate() error {
	switch r.Kind {
	case KindField:
		if !segmentPattern.MatchString(r.Field) {
			return ErrInvalidResource
		}
	case KindFile:
		if r.Field != "" {
			return ErrInvalidResource
		}
	default:
		return ErrInvalidResource
	}
	if !segmentPattern.MatchString(r.Type) || !segmentPattern.MatchString(r.ID) {
		return ErrInvalidResource
	}
	return nil
}

// Path is the slash-joined id used in audit entries and storage keys.
func (r ResourceRef) Path() string {
	parts := []string{r.Type, r.ID}
	if r.Field != "" {
		parts = append(parts, r.Field)
	}
	return strings.Join(parts, "/")
}

func (r ResourceRef) String() string {
	return string(r.Kind) + ":" + r.Path()
}

// AAD is the associated data bound into the resource ciphertext. Moving a
// ciphertext to another reference makes decryption fail.
func (r ResourceRef) AAD() []byte {
	buf := []byte("gatekeeper/resource/v1")
	for _, part := range []string{string(r.Kind), r.Type, r.ID, r.Field} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(part)))
		buf = append(buf, part...)
	}
	return buf
}

// StoredResource is what the durable store keeps for one resource.
type StoredResource struct {
	Ref         ResourceRef
	Blob        cryptoDomain.EncryptedBlob
	WrappedDEK  []byte
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
