// Package http provides bearer-token extraction and role-gated middleware.
package http

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
	"github.com/allisson/gatekeeper/internal/httputil"
	identityDomain "github.com/allisson/gatekeeper/internal/identity/domain"
	identityService "github.com/allisson/gatekeeper/internal/identity/service"
	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

type identityKey struct{}

// WithIdentity stores a verified identity in the context.
func WithIdentity(ctx context.Context, identity identityDomain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// GetIdentity retrieves the verified identity from the context.
func GetIdentity(ctx context.Context) (identityDomain.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(identityDomain.Identity)
	return identity, ok
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(c *gin.Context) (string, bool) {
	const bearerPrefix = "bearer "

	header := c.GetHeader("Authorization")
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// RequireRole verifies the bearer token and admits only the listed roles.
//
// Missing or rejected tokens answer 401, other roles 403. The verified
// identity is available downstream through GetIdentity.
func RequireRole(
	verifier identityService.IdentityVerifier,
	logger *slog.Logger,
	roles ...policyDomain.Role,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			logger.Debug("authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		identity, err := verifier.VerifyIdentity(c.Request.Context(), token)
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, err.Error()), logger)
			c.Abort()
			return
		}

		if !slices.Contains(roles, identity.Role) {
			logger.Debug("authorization failed: role not allowed",
				slog.String("principal_id", identity.PrincipalID),
				slog.String("role", string(identity.Role)))
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}
