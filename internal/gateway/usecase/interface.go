// Package usecase orchestrates the decryption gateway: rate check, identity,
// step-up, policy, envelope decryption, session artifacts and auditing.
package usecase

import (
	"context"
	"time"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
	sessionDomain "github.com/allisson/gatekeeper/internal/session/domain"
)

// RateMonitor is the subset of the anomaly monitor used by the gateway.
type RateMonitor interface {
	BlockedUntil(key monitorDomain.Key) (bool, time.Time)
	RecordFailure(ctx context.Context, key monitorDomain.Key)
	RecordEvent(ctx context.Context, key monitorDomain.Key, value string)
}

// AccessPolicy answers role checks for fields and files.
type AccessPolicy interface {
	CanAccess(table, field string, role policyDomain.Role) bool
	CanAccessFile(resourceType string, role policyDomain.Role) bool
	RequiresStepUp(table, field string) bool
}

// SessionStore keeps decrypted files per login session.
type SessionStore interface {
	EnsureSession(principalID, sessionID string) (sessionDomain.Session, error)
	Lookup(principalID, sessionID string) (sessionDomain.Session, bool)
	WriteArtifact(session sessionDomain.Session, resourceRef string, plaintext []byte) (sessionDomain.Artifact, error)
	ReadArtifact(ctx context.Context, session sessionDomain.Session, path string) ([]byte, error)
	CleanupSession(principalID, sessionID string) error
}

// AuditAppender records access decisions.
type AuditAppender interface {
	Append(ctx context.Context, entry *auditDomain.Entry) (*auditDomain.Entry, error)
}

// AlertPublisher escalates security faults.
type AlertPublisher interface {
	Publish(ctx context.Context, alert monitorDomain.Alert)
}

// ResourceRepository persists encrypted resources.
type ResourceRepository interface {
	Get(ctx context.Context, ref gatewayDomain.ResourceRef) (*gatewayDomain.StoredResource, error)
	Put(ctx context.Context, resource *gatewayDomain.StoredResource) error
	// Replace writes next only if the stored record still matches previous,
	// otherwise it returns ErrResourceChanged.
	Replace(ctx context.Context, previous, next *gatewayDomain.StoredResource) error
	Walk(ctx context.Context, fn func(resource *gatewayDomain.StoredResource) error) error
}

// Gateway is the only path from ciphertext to plaintext. Every call appends
// exactly one audit entry.
type Gateway interface {
	// Resolve returns a field plaintext or a session artifact reference, or a
	// *DenialError.
	Resolve(ctx context.Context, req gatewayDomain.ResolveRequest) (*gatewayDomain.ResolveResult, error)

	// Encrypt stores plaintext for a resource after the same role checks as Resolve.
	Encrypt(ctx context.Context, req gatewayDomain.EncryptRequest) (*gatewayDomain.EncryptResult, error)

	// ReadArtifact returns a decrypted file from the caller's own session.
	ReadArtifact(ctx context.Context, req gatewayDomain.ArtifactRequest) ([]byte, error)

	// Logout removes the caller's session and its artifacts.
	Logout(ctx context.Context, req gatewayDomain.LogoutRequest) error

	// RewrapAll re-wraps every stored DEK that is not under the active KEK
	// version and returns how many were updated.
	RewrapAll(ctx context.Context) (int, error)
}
