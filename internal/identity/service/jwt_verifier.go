package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/allisson/gatekeeper/internal/errors"
	identityDomain "github.com/allisson/gatekeeper/internal/identity/domain"
	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

// Claims is the payload of identity tokens issued by the IAM service.
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-signed identity tokens.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
	audience   string
	leeway     time.Duration
}

// NewJWTVerifier creates a JWTVerifier. Empty issuer or audience skips that check.
func NewJWTVerifier(signingKey, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		leeway:     30 * time.Second,
	}
}

// VerifyIdentity implements IdentityVerifier.
func (v *JWTVerifier) VerifyIdentity(_ context.Context, token string) (identityDomain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identityDomain.Identity{}, identityDomain.ErrTokenExpired
		}
		return identityDomain.Identity{}, identityDomain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.Role == "" {
		return identityDomain.Identity{}, identityDomain.ErrInvalidToken
	}

	return identityDomain.Identity{
		PrincipalID: claims.Subject,
		Role:        policyDomain.Role(claims.Role),
		SessionID:   claims.SessionID,
	}, nil
}

// IssueToken signs a token for principalID. It backs tests and the local
// development flow; production tokens come from the IAM service.
func (v *JWTVerifier) IssueToken(principalID string, role policyDomain.Role, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:      string(role),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}
