package domain

import (
	"github.com/allisson/gatekeeper/internal/errors"
)

var (
	// ErrInvalidPolicy indicates a malformed policy document.
	ErrInvalidPolicy = errors.Wrap(errors.ErrInvalidInput, "invalid access policy")

	// ErrDuplicateRule indicates two rules target the same field or file type.
	ErrDuplicateRule = errors.Wrap(errors.ErrConflict, "duplicate access rule")
)
