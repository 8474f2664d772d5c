package domain

import (
	"time"
)

// ResolveRequest asks to see the plaintext of one resource.
type ResolveRequest struct {
	Token      string
	StepUpCode string
	SourceIP   string
	// SessionID overrides the session carried by the identity token.
	SessionID string
	Resource  ResourceRef
}

// ArtifactRef points at a decrypted file in the caller's session.
type ArtifactRef struct {
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResolveResult is either a field plaintext or a file artifact reference.
type ResolveResult struct {
	Resource      ResourceRef
	Plaintext     []byte
	Artifact      *ArtifactRef
	AuditSequence uint64
	Trail         []State
}

// EncryptRequest stores plaintext for a resource.
type EncryptRequest struct {
	Token       string
	SourceIP    string
	Resource    ResourceRef
	Plaintext   []byte
	ContentType string
}

// EncryptResult describes the stored ciphertext.
type EncryptResult struct {
	Resource      ResourceRef
	KekVersion    uint
	AuditSequence uint64
}

// ArtifactRequest reads back a decrypted artifact.
type ArtifactRequest struct {
	Token     string
	SourceIP  string
	SessionID string
	Path      string
}

// LogoutRequest ends a login session.
type LogoutRequest struct {
	Token     string
	SourceIP  string
	SessionID string
}
