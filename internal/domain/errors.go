package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in the
// handler layer without switching on concrete types.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// Is allows errors.Is() to match the sentinel equivalents, so callers can
// treat typed and wrapped errors uniformly.
func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")

	// ErrTransport covers network failures, unreachable or invalid endpoints,
	// and request-encoding failures during completion fulfillment. It is never
	// surfaced over HTTP; the completion worker converts it into an inline
	// error reply.
	ErrTransport = errors.New("transport failure")

	// ErrFormat indicates a completion response body that matches none of the
	// accepted shapes. Handled the same way as ErrTransport.
	ErrFormat = errors.New("unrecognized response format")
)
