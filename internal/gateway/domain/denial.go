package domain

import (
	"fmt"
	"time"

	"github.com/allisson/gatekeeper/internal/errors"
)

// DenialReason is the internal reason code kept in the audit log.
type DenialReason string

const (
	DenialRateLimited            DenialReason = "rate_limited"
	DenialIdentityInvalid        DenialReason = "identity_invalid"
	DenialStepUpFailed           DenialReason = "step_up_failed"
	DenialInsufficientPermission DenialReason = "insufficient_permission"
	DenialTamperedOrCorrupt      DenialReason = "tampered_or_corrupt"
	DenialPathEscape             DenialReason = "path_escape"
	DenialUpstreamTimeout        DenialReason = "upstream_timeout"
	DenialKeyNotFound            DenialReason = "key_not_found"
	DenialResourceNotFound       DenialReason = "resource_not_found"
)

var (
	// ErrAccessDenied is the single outward signal for every denial except
	// rate limiting and upstream timeouts.
	ErrAccessDenied = errors.Wrap(errors.ErrForbidden, "access denied")

	// ErrRateLimited is the outward signal for a blocked requester.
	ErrRateLimited = errors.Wrap(errors.ErrTooManyRequests, "rate limited")

	// ErrUpstreamTimeout is the outward signal for a transient collaborator timeout.
	ErrUpstreamTimeout = errors.Wrap(errors.ErrUnavailable, "upstream timeout")
)

// DenialError carries the internal reason of a denial. Its Unwrap only
// exposes the outward signal, so callers cannot tell permission failures
// from tampering.
type DenialError struct {
	Reason     DenialReason
	RetryAfter time.Duration
	// AuditSequence is the audit entry recording this denial.
	AuditSequence uint64
}

// NewDenialError creates a DenialError.
func NewDenialError(reason DenialReason) *DenialError {
	return &DenialError{Reason: reason}
}

func (e *DenialError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one.
func (e *DenialError) RetryAfterSeconds() int {
	seconds := int((e.RetryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Unwrap returns the outward signal for the reason.
func (e *DenialError) Unwrap() error {
	switch e.Reason {
	case DenialRateLimited:
		return ErrRateLimited
	case DenialUpstreamTimeout:
		return ErrUpstreamTimeout
	default:
		return ErrAccessDenied
	}
}

// ReasonOf extracts the denial reason from err.
func ReasonOf(err error) (DenialReason, bool) {
	var denial *DenialError
	if errors.As(err, &denial) {
		return denial.Reason, true
	}
	return "", false
}
