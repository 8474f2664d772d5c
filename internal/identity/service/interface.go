// Package service contains the adapters to the identity, step-up and device
// posture collaborators.
package service

import (
	"context"

	identityDomain "github.com/allisson/gatekeeper/internal/identity/domain"
)

// IdentityVerifier resolves an identity token to a principal and role.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, token string) (identityDomain.Identity, error)
}

// StepUpVerifier checks a second-factor code for a principal.
type StepUpVerifier interface {
	VerifyStepUp(ctx context.Context, principalID, code string) (bool, error)
}

// PostureChecker decides whether the requesting device is acceptable.
type PostureChecker interface {
	CheckPosture(ctx context.Context, identity identityDomain.Identity) error
}

// NoopPostureChecker accepts every device.
type NoopPostureChecker struct{}

// CheckPosture implements PostureChecker.
func (NoopPostureChecker) CheckPosture(context.Context, identityDomain.Identity) error {
	return nil
}
