package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

const localScheme = "base64key"

var supportedSchemes = map[string]struct{}{
	localScheme:     {},
	"hashivault":    {},
	"awskms":        {},
	"gcpkms":        {},
	"azurekeyvault": {},
}

// KMSService opens keepers for KEK versions.
type KMSService interface {
	// OpenKeeper opens a keeper for keyURI.
	// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

type kmsService struct{}

// NewKMSService creates a KMS service backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a *secrets.Keeper for the URI. Errors never carry local
// key material.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	u, err := url.Parse(keyURI)
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable key uri %s", cryptoDomain.ErrInvalidKekFormat, RedactKeyURI(keyURI))
	}
	if _, ok := supportedSchemes[u.Scheme]; !ok {
		return nil, fmt.Errorf("%w: unsupported KMS scheme %q", cryptoDomain.ErrInvalidKekFormat, u.Scheme)
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		msg := strings.ReplaceAll(err.Error(), keyURI, RedactKeyURI(keyURI))
		return nil, fmt.Errorf("failed to open %s keeper: %s", u.Scheme, msg)
	}
	return keeper, nil
}

// RedactKeyURI hides the key carried by a base64key:// URI. Remote KMS URIs
// only name a key and are returned unchanged.
func RedactKeyURI(keyURI string) string {
	if strings.HasPrefix(keyURI, localScheme+"://") {
		return localScheme + "://REDACTED"
	}
	return keyURI
}
