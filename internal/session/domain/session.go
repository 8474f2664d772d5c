// Package domain defines login sessions and the decrypted artifacts they own.
package domain

import (
	"time"

	"github.com/allisson/gatekeeper/internal/errors"
)

// Session isolates decrypted artifacts of one (principal, login session) pair.
type Session struct {
	ID             string    `json:"id"`
	PrincipalID    string    `json:"principal_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	EphemeralDir   string    `json:"-"`
}

// Artifact is a decrypted file living inside its session directory.
type Artifact struct {
	// Path is relative to the session directory.
	Path        string    `json:"path"`
	ResourceRef string    `json:"resource_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	// ErrPathEscape indicates a path resolved outside its session directory.
	// It is a security fault, never a routine error.
	ErrPathEscape = errors.Wrap(errors.ErrForbidden, "path escapes session directory")

	// ErrSessionNotFound indicates the session is not registered.
	ErrSessionNotFound = errors.Wrap(errors.ErrNotFound, "session not found")

	// ErrArtifactNotFound indicates the artifact does not exist.
	ErrArtifactNotFound = errors.Wrap(errors.ErrNotFound, "artifact not found")

	// ErrInvalidSession indicates an empty principal or session id.
	ErrInvalidSession = errors.Wrap(errors.ErrInvalidInput, "invalid session")
)
