// Package repository persists encrypted resources in the key-value store.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/allisson/gatekeeper/internal/errors"
	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	"github.com/allisson/gatekeeper/internal/storage"
)

const resourcePrefix = "resources/"

// storedRecord is the persisted layout. Blob is the binary EncryptedBlob
// encoding, which carries the KEK version next to ciphertext, IV and tag.
type storedRecord struct {
	Ref         gatewayDomain.ResourceRef `json:"ref"`
	Blob        []byte                    `json:"blob"`
	WrappedDEK  []byte                    `json:"wrapped_dek"`
	ContentType string                    `json:"content_type,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// KVResourceRepository stores one key per resource reference.
type KVResourceRepository struct {
	store storage.Store
}

// NewKVResourceRepository creates a KVResourceRepository.
func NewKVResourceRepository(store storage.Store) *KVResourceRepository {
	return &KVResourceRepository{store: store}
}

func resourceKey(ref gatewayDomain.ResourceRef) string {
	return resourcePrefix + string(ref.Kind) + "/" + ref.Path()
}

// Get returns the stored resource or ErrResourceNotFound.
func (r *KVResourceRepository) Get(
	ctx context.Context,
	ref gatewayDomain.ResourceRef,
) (*gatewayDomain.StoredResource, error) {
	data, err := r.store.Get(ctx, resourceKey(ref))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, gatewayDomain.ErrResourceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read resource")
	}
	return decodeRecord(data)
}

// Put stores resource, replacing any previous version.
func (r *KVResourceRepository) Put(ctx context.Context, resource *gatewayDomain.StoredResource) error {
	data, err := encodeRecord(resource)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, resourceKey(resource.Ref), data)
}

// Replace swaps previous for next in one conditional write. It returns
// ErrResourceChanged when the stored ciphertext or wrapped DEK no longer
// match previous, or when another writer commits between the read and the
// swap.
func (r *KVResourceRepository) Replace(
	ctx context.Context,
	previous, next *gatewayDomain.StoredResource,
) error {
	key := resourceKey(previous.Ref)
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return gatewayDomain.ErrResourceChanged
	}
	if err != nil {
		return errors.Wrap(err, "failed to read resource")
	}
	current, err := decodeRecord(raw)
	if err != nil {
		return err
	}
	same, err := sameCiphertext(current, previous)
	if err != nil {
		return err
	}
	if !same {
		return gatewayDomain.ErrResourceChanged
	}

	data, err := encodeRecord(next)
	if err != nil {
		return err
	}
	err = r.store.Apply(ctx, storage.Op{Key: key, Value: data, Expect: raw})
	if errors.Is(err, storage.ErrKeyChanged) {
		return gatewayDomain.ErrResourceChanged
	}
	return err
}

func sameCiphertext(a, b *gatewayDomain.StoredResource) (bool, error) {
	if !bytes.Equal(a.WrappedDEK, b.WrappedDEK) {
		return false, nil
	}
	blobA, err := a.Blob.MarshalBinary()
	if err != nil {
		return false, err
	}
	blobB, err := b.Blob.MarshalBinary()
	if err != nil {
		return false, err
	}
	return bytes.Equal(blobA, blobB), nil
}

func encodeRecord(resource *gatewayDomain.StoredResource) ([]byte, error) {
	blob, err := resource.Blob.MarshalBinary()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(storedRecord{
		Ref:         resource.Ref,
		Blob:        blob,
		WrappedDEK:  resource.WrappedDEK,
		ContentType: resource.ContentType,
		CreatedAt:   resource.CreatedAt,
		UpdatedAt:   resource.UpdatedAt,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode resource")
	}
	return data, nil
}

// Walk calls fn for every stored resource in key order.
func (r *KVResourceRepository) Walk(
	ctx context.Context,
	fn func(resource *gatewayDomain.StoredResource) error,
) error {
	return r.store.Scan(ctx, resourcePrefix, "", 0, func(_ string, value []byte) error {
		resource, err := decodeRecord(value)
		if err != nil {
			return err
		}
		return fn(resource)
	})
}

func decodeRecord(data []byte) (*gatewayDomain.StoredResource, error) {
	var record storedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(cryptoDomain.ErrTamperedOrCorrupt, "undecodable resource record")
	}

	var blob cryptoDomain.EncryptedBlob
	if err := blob.UnmarshalBinary(record.Blob); err != nil {
		return nil, err
	}
	return &gatewayDomain.StoredResource{
		Ref:         record.Ref,
		Blob:        blob,
		WrappedDEK:  record.WrappedDEK,
		ContentType: record.ContentType,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}
