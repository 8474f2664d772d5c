// Package domain defines authenticated principals as seen by the gateway.
package domain

import (
	"github.com/allisson/gatekeeper/internal/errors"
	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

// Identity is the result of resolving an identity token.
type Identity struct {
	PrincipalID string
	Role        policyDomain.Role
	// SessionID is the login session the token was issued for.
	SessionID string
}

var (
	// ErrInvalidToken indicates the identity token was rejected.
	ErrInvalidToken = errors.Wrap(errors.ErrUnauthorized, "invalid identity token")

	// ErrTokenExpired indicates the identity token is past its expiry.
	ErrTokenExpired = errors.Wrap(errors.ErrUnauthorized, "identity token expired")

	// ErrPostureRejected indicates the device posture check failed.
	ErrPostureRejected = errors.Wrap(errors.ErrForbidden, "device posture rejected")

	// ErrStepUpUnavailable indicates no step-up verifier is configured.
	ErrStepUpUnavailable = errors.Wrap(errors.ErrUnavailable, "step-up verification unavailable")
)
