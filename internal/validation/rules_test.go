package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

func TestResourceSegment(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		shouldErr bool
	}{
		{name: "table name", input: "patients"},
		{name: "uuid", input: "0190f5a4-7c1e-7b9a-8a51-3f2e1d0c9b8a"},
		{name: "namespaced", input: "lab:report.v2"},
		{name: "slash", input: "a/b", shouldErr: true},
		{name: "space", input: "a b", shouldErr: true},
		{name: "too long", input: string(make([]byte, 129)), shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ResourceSegment.Validate(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNoWhitespace(t *testing.T) {
	assert.NoError(t, NoWhitespace.Validate("valid string"))
	assert.Error(t, NoWhitespace.Validate(" leading"))
	assert.Error(t, NoWhitespace.Validate("trailing "))
}

func TestNotBlank(t *testing.T) {
	assert.NoError(t, NotBlank.Validate("value"))
	assert.Error(t, NotBlank.Validate(" \t\n "))
}

func TestBase64Payload(t *testing.T) {
	rule := Base64Payload(5)

	assert.NoError(t, rule.Validate("aGVsbG8="))
	assert.NoError(t, rule.Validate(""))
	assert.Error(t, rule.Validate("not base64!"))
	assert.Error(t, rule.Validate(42))
	assert.Error(t, rule.Validate("aGVsbG8h"), "6 bytes decoded")
	assert.Error(t, rule.Validate("aGVsbG8gd29ybGQgYW5kIG1vcmU="), "rejected before decoding")
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(assert.AnError)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
