package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
)

// KeyRing holds one open keeper per registered KEK version plus the active version.
// Versions are only ever added; a registered keeper is never replaced.
type KeyRing struct {
	kms     KMSService
	mu      sync.RWMutex
	keepers map[uint]cryptoDomain.KMSKeeper
	keks    map[uint]cryptoDomain.Kek
	active  uint
}

// NewKeyRing creates an empty ring that opens keepers through kms.
func NewKeyRing(kms KMSService) *KeyRing {
	return &KeyRing{
		kms:     kms,
		keepers: make(map[uint]cryptoDomain.KMSKeeper),
		keks:    make(map[uint]cryptoDomain.Kek),
	}
}

// OpenKeyRing opens every KEK in keks and activates activeVersion.
// On error every keeper opened so far is closed.
func OpenKeyRing(
	ctx context.Context,
	kms KMSService,
	keks []cryptoDomain.Kek,
	activeVersion uint,
) (*KeyRing, error) {
	ring := NewKeyRing(kms)
	for _, kek := range keks {
		if err := ring.Register(ctx, kek); err != nil {
			_ = ring.Close()
			return nil, err
		}
	}

	ring.mu.Lock()
	defer ring.mu.Unlock()
	if _, ok := ring.keepers[activeVersion]; !ok {
		_ = ring.closeLocked()
		return nil, fmt.Errorf("%w: active version %d", cryptoDomain.ErrKeyNotFound, activeVersion)
	}
	ring.active = activeVersion

	return ring, nil
}

// Register opens the keeper for kek without changing the active version.
func (r *KeyRing) Register(ctx context.Context, kek cryptoDomain.Kek) error {
	if kek.Version == 0 {
		return cryptoDomain.ErrInvalidKekVersion
	}

	r.mu.RLock()
	_, exists := r.keepers[kek.Version]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: version %d", cryptoDomain.ErrKekAlreadyExists, kek.Version)
	}

	// Opening may reach a remote KMS; no lock is held meanwhile.
	keeper, err := r.kms.OpenKeeper(ctx, kek.KeyURI)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keepers[kek.Version]; exists {
		_ = keeper.Close()
		return fmt.Errorf("%w: version %d", cryptoDomain.ErrKekAlreadyExists, kek.Version)
	}
	r.keepers[kek.Version] = keeper
	r.keks[kek.Version] = kek
	return nil
}

// Rotate registers kek and makes it the active version. The new version must be
// greater than the current active one.
func (r *KeyRing) Rotate(ctx context.Context, kek cryptoDomain.Kek) error {
	if kek.Version <= r.Active() {
		return fmt.Errorf(
			"%w: %d is not newer than active version %d",
			cryptoDomain.ErrInvalidKekVersion,
			kek.Version,
			r.Active(),
		)
	}
	if err := r.Register(ctx, kek); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if kek.Version > r.active {
		r.active = kek.Version
	}
	return nil
}

// Active returns the active KEK version, 0 when the ring is empty.
func (r *KeyRing) Active() uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Keeper returns the keeper for version or ErrKeyNotFound.
func (r *KeyRing) Keeper(version uint) (cryptoDomain.KMSKeeper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keeper, ok := r.keepers[version]
	if !ok {
		return nil, fmt.Errorf("%w: version %d", cryptoDomain.ErrKeyNotFound, version)
	}
	return keeper, nil
}

// Versions returns the registered KEK references.
func (r *KeyRing) Versions() []cryptoDomain.Kek {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keks := make([]cryptoDomain.Kek, 0, len(r.keks))
	for _, kek := range r.keks {
		keks = append(keks, kek)
	}
	return keks
}

// Close closes every keeper and empties the ring.
func (r *KeyRing) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *KeyRing) closeLocked() error {
	var errs []error
	for version, keeper := range r.keepers {
		if err := keeper.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kek version %d: %w", version, err))
		}
	}
	r.keepers = make(map[uint]cryptoDomain.KMSKeeper)
	r.keks = make(map[uint]cryptoDomain.Kek)
	r.active = 0
	return errors.Join(errs...)
}
