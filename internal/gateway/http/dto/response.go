package dto

import (
	"encoding/base64"
	"time"

	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
)

// EncryptResourceResponse reports where the resource was stored.
type EncryptResourceResponse struct {
	Resource      string `json:"resource"`
	KekVersion    uint   `json:"kek_version"`
	AuditSequence uint64 `json:"audit_sequence"`
}

// ArtifactResponse points at a decrypted file inside the caller's session.
type ArtifactResponse struct {
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResolveResponse carries a base64 field value or an artifact reference.
type ResolveResponse struct {
	Resource      string            `json:"resource"`
	Value         string            `json:"value,omitempty"`
	Artifact      *ArtifactResponse `json:"artifact,omitempty"`
	AuditSequence uint64            `json:"audit_sequence"`
}

// MapEncryptResult converts an encrypt result to its response.
func MapEncryptResult(result *gatewayDomain.EncryptResult) EncryptResourceResponse {
	return EncryptResourceResponse{
		Resource:      result.Resource.String(),
		KekVersion:    result.KekVersion,
		AuditSequence: result.AuditSequence,
	}
}

// MapResolveResult converts a resolve result to its response.
func MapResolveResult(result *gatewayDomain.ResolveResult) ResolveResponse {
	response := ResolveResponse{
		Resource:      result.Resource.String(),
		AuditSequence: result.AuditSequence,
	}
	if result.Artifact != nil {
		response.Artifact = &ArtifactResponse{
			SessionID: result.Artifact.SessionID,
			Path:      result.Artifact.Path,
			ExpiresAt: result.Artifact.ExpiresAt,
		}
	} else {
		response.Value = base64.StdEncoding.EncodeToString(result.Plaintext)
	}
	return response
}
