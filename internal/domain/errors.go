package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals missing or malformed request input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated signals that no credential was presented where one is required.
	ErrUnauthenticated = errors.New("authentication credentials were not provided")
	// ErrTokenInvalid signals a malformed, expired or otherwise unverifiable token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrPrincipalInactive signals a valid token whose principal is unknown or disabled.
	ErrPrincipalInactive = errors.New("user not found or inactive")
	// ErrNotFound signals an absent lookup result.
	ErrNotFound = errors.New("not found")
	// ErrBackend signals a search backend failure surfaced by the adapter.
	ErrBackend = errors.New("backend error")
)

// BackendError is an adapter-level failure with a short, client-safe message.
// The underlying cause is kept for logging only.
type BackendError struct {
	Op      string
	Message string
	Cause   error
}

func (e *BackendError) Error() string { return e.Message }

// Unwrap exposes both the taxonomy sentinel and the cause.
func (e *BackendError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrBackend}
	}
	return []error{ErrBackend, e.Cause}
}

// NewBackendError creates a BackendError with a formatted message.
func NewBackendError(op string, cause error, format string, args ...any) error {
	return &BackendError{Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}
