package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identityDomain "github.com/allisson/gatekeeper/internal/identity/domain"
	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

func TestJWTVerifier_VerifyIdentity(t *testing.T) {
	ctx := context.Background()
	verifier := NewJWTVerifier("test-signing-key", "iam", "gatekeeper")

	t.Run("valid token", func(t *testing.T) {
		token, err := verifier.IssueToken("nurse-1", policyDomain.RoleNurse, "sess-1", time.Minute)
		require.NoError(t, err)

		identity, err := verifier.VerifyIdentity(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "nurse-1", identity.PrincipalID)
		assert.Equal(t, policyDomain.RoleNurse, identity.Role)
		assert.Equal(t, "sess-1", identity.SessionID)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := verifier.IssueToken("nurse-1", policyDomain.RoleNurse, "", -time.Hour)
		require.NoError(t, err)

		_, err = verifier.VerifyIdentity(ctx, token)
		assert.ErrorIs(t, err, identityDomain.ErrTokenExpired)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token, err := NewJWTVerifier("other-key", "iam", "gatekeeper").
			IssueToken("nurse-1", policyDomain.RoleNurse, "", time.Minute)
		require.NoError(t, err)

		_, err = verifier.VerifyIdentity(ctx, token)
		assert.ErrorIs(t, err, identityDomain.ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, err := NewJWTVerifier("test-signing-key", "iam", "someone-else").
			IssueToken("nurse-1", policyDomain.RoleNurse, "", time.Minute)
		require.NoError(t, err)

		_, err = verifier.VerifyIdentity(ctx, token)
		assert.ErrorIs(t, err, identityDomain.ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			Role: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "attacker",
				Issuer:    "iam",
				Audience:  jwt.ClaimStrings{"gatekeeper"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.VerifyIdentity(ctx, token)
		assert.ErrorIs(t, err, identityDomain.ErrInvalidToken)
	})

	t.Run("missing role", func(t *testing.T) {
		token, err := verifier.IssueToken("nurse-1", "", "", time.Minute)
		require.NoError(t, err)

		_, err = verifier.VerifyIdentity(ctx, token)
		assert.ErrorIs(t, err, identityDomain.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.VerifyIdentity(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, identityDomain.ErrInvalidToken)
	})
}

func TestNoopPostureChecker(t *testing.T) {
	assert.NoError(t, NoopPostureChecker{}.CheckPosture(context.Background(), identityDomain.Identity{}))
}
