// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	customValidation "github.com/allisson/gatekeeper/internal/validation"
)

var kinds = []interface{}{string(gatewayDomain.KindField), string(gatewayDomain.KindFile)}

// Decoded size limits for encrypt payloads.
const (
	MaxFieldBytes = 1 << 20
	MaxFileBytes  = 64 << 20
)

// EncryptResourceRequest contains the plaintext to store for a resource.
// The resource type and id are taken from the URL.
type EncryptResourceRequest struct {
	// Kind is "field" or "file"; empty means "field".
	Kind        string `json:"kind"`
	Field       string `json:"field"`
	Value       string `json:"value"` // base64
	ContentType string `json:"content_type"`
}

func (r *EncryptResourceRequest) kind() string {
	if r.Kind == "" {
		return string(gatewayDomain.KindField)
	}
	return r.Kind
}

// Validate checks the request body.
func (r *EncryptResourceRequest) Validate() error {
	isField := r.kind() == string(gatewayDomain.KindField)
	maxBytes := MaxFileBytes
	if isField {
		maxBytes = MaxFieldBytes
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Kind, validation.In(kinds...)),
		validation.Field(&r.Field,
			validation.When(isField, validation.Required, customValidation.ResourceSegment).
				Else(validation.Empty),
		),
		validation.Field(&r.Value, validation.Required, customValidation.Base64Payload(maxBytes)),
		validation.Field(&r.ContentType, validation.Length(0, 255)),
	)
}

// Ref builds the resource reference for the URL parameters.
func (r *EncryptResourceRequest) Ref(resourceType, id string) gatewayDomain.ResourceRef {
	if r.kind() == string(gatewayDomain.KindFile) {
		return gatewayDomain.FileRef(resourceType, id)
	}
	return gatewayDomain.FieldRef(resourceType, id, r.Field)
}

// ResolveRequest names the resource to decrypt.
type ResolveRequest struct {
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	ID        string `json:"id"`
	Field     string `json:"field"`
	SessionID string `json:"session_id"`
}

// Validate checks the request body.
func (r *ResolveRequest) Validate() error {
	isField := r.Kind == string(gatewayDomain.KindField)
	return validation.ValidateStruct(r,
		validation.Field(&r.Kind, validation.Required, validation.In(kinds...)),
		validation.Field(&r.Type, validation.Required, customValidation.ResourceSegment),
		validation.Field(&r.ID, validation.Required, customValidation.ResourceSegment),
		validation.Field(&r.Field,
			validation.When(isField, validation.Required, customValidation.ResourceSegment).
				Else(validation.Empty),
		),
		validation.Field(&r.SessionID, customValidation.NoWhitespace, validation.Length(0, 128)),
	)
}

// Ref builds the resource reference.
func (r *ResolveRequest) Ref() gatewayDomain.ResourceRef {
	return gatewayDomain.ResourceRef{
		Kind:  gatewayDomain.ResourceKind(r.Kind),
		Type:  r.Type,
		ID:    r.ID,
		Field: r.Field,
	}
}
