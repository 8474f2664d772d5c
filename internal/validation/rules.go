// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/gatekeeper/internal/errors"
)

var segmentRegex = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// ResourceSegment validates one part of a resource reference (type, id or field).
var ResourceSegment = validation.NewStringRuleWithError(
	func(s string) bool {
		return segmentRegex.MatchString(s)
	},
	validation.NewError("validation_resource_segment", "must be 1-128 characters of letters, digits, '.', '_', ':' or '-'"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
