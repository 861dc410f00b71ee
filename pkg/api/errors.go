package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoSession is returned when an operation requires a session id
	// and none was provided.
	ErrNoSession = errors.New("api: session id required")

	// ErrEmptyAudio is returned when an audio upload has no data.
	ErrEmptyAudio = errors.New("api: audio artifact is empty")

	// ErrEmptyText is returned when a text operation receives no text.
	ErrEmptyText = errors.New("api: text must not be empty")
)

// APIError represents a non-2xx response from the backend.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the backend, or the raw body.
	Message string

	// Operation identifies which endpoint returned the error.
	Operation string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api [%s]: error %d: %s", e.Operation, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
// Callers must surface this distinctly from generic server errors.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsNotFound returns true if the resource was not found (HTTP 404).
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// RequestError wraps a transport-level failure with operation context.
// It covers everything that failed before an HTTP status was received
// (DNS, connect, timeout, canceled context).
type RequestError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("api [%s]: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &RequestError{Operation: operation, Err: err}
}

// IsRateLimited reports whether err is a 429 response from any operation.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimited()
}

// IsNetworkError reports whether err is a transport-level failure rather
// than a backend-reported one.
func IsNetworkError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}
