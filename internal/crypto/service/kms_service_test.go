package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"gocloud.dev/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("Success_LocalSecrets", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, keeper.Close())
		}()

		_, ok := keeper.(*secrets.Keeper)
		assert.True(t, ok, "keeper should be *secrets.Keeper")
	})

	t.Run("Error_UnsupportedScheme", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "invalid://uri")
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKekFormat)
		assert.Nil(t, keeper)
		assert.Contains(t, err.Error(), `"invalid"`)
	})

	t.Run("Error_BadLocalKeyIsRedacted", func(t *testing.T) {
		keyURI := "base64key://c2hvcnQta2V5"
		keeper, err := kmsService.OpenKeeper(ctx, keyURI)
		require.Error(t, err)
		assert.Nil(t, keeper)
		assert.NotContains(t, err.Error(), "c2hvcnQta2V5")
	})
}

func TestKMSService_WrapWithDifferentKeepers(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	keeper1, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, keeper1.Close()) }()

	keeper2, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, keeper2.Close()) }()

	dek := make([]byte, 32)
	_, err = rand.Read(dek)
	require.NoError(t, err)

	wrapped, err := keeper1.Encrypt(ctx, dek)
	require.NoError(t, err)

	unwrapped, err := keeper1.Decrypt(ctx, wrapped)
	require.NoError(t, err)
	assert.Equal(t, dek, unwrapped)

	_, err = keeper2.Decrypt(ctx, wrapped)
	assert.Error(t, err)
}

func TestRedactKeyURI(t *testing.T) {
	assert.Equal(t, "base64key://REDACTED", RedactKeyURI("base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="))
	assert.Equal(t, "hashivault://gatekeeper", RedactKeyURI("hashivault://gatekeeper"))
	assert.Equal(t, "awskms://alias/gatekeeper?region=us-east-1", RedactKeyURI("awskms://alias/gatekeeper?region=us-east-1"))
}
