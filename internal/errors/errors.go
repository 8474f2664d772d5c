// Package errors holds the sentinel errors use cases return and handlers map
// to HTTP statuses. Infrastructure errors are wrapped into one of these
// before they leave a repository, so handlers never see driver types.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the stored record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a write collided with existing data.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput means the request failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized means no usable credentials were presented.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the request was refused. Every access denial
	// surfaces as this regardless of its internal reason.
	ErrForbidden = errors.New("forbidden")

	// ErrTooManyRequests means the caller is blocked by a rate threshold.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrUnavailable means a collaborator did not answer in time. Safe to retry.
	ErrUnavailable = errors.New("unavailable")
)

// New returns a plain error.
func New(message string) error {
	return errors.New(message)
}

// Wrap prefixes err with message, keeping it matchable with Is. Nil stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
