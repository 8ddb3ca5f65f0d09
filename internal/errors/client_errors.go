package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents different types of errors the client can surface
type ErrorCategory string

const (
	// Session-level errors that force re-authentication
	ErrorCategoryCredentials ErrorCategory = "CREDENTIALS"
	ErrorCategorySession     ErrorCategory = "SESSION"

	// Per-request errors contained at their origin
	ErrorCategoryRequest ErrorCategory = "REQUEST"
	ErrorCategoryNetwork ErrorCategory = "NETWORK"
	ErrorCategoryOrder   ErrorCategory = "ORDER"

	// Stream errors, never propagated past the synchronizer
	ErrorCategoryPayload ErrorCategory = "PAYLOAD"

	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
)

// ClientError represents a categorized error with component context
type ClientError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Status     int // HTTP status for REQUEST errors, zero otherwise
	Underlying error
}

// Error implements the error interface
func (e *ClientError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, msg, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, msg)
}

// Unwrap returns the underlying error for error unwrapping
func (e *ClientError) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether a caller-level retry makes sense.
// Retry policy itself lives with the caller, never in the gateway.
func (e *ClientError) IsRetryable() bool {
	switch e.Category {
	case ErrorCategoryNetwork:
		return true
	default:
		return false
	}
}

// ForcesReauth reports whether this error must bubble to the top and
// tear down all session-scoped components.
func (e *ClientError) ForcesReauth() bool {
	return e.Category == ErrorCategorySession
}

// New creates a new categorized client error
func New(category ErrorCategory, component, operation, message string) *ClientError {
	return &ClientError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap wraps an existing error with client error context
func Wrap(err error, category ErrorCategory, component, operation string) *ClientError {
	if err == nil {
		return nil
	}
	return &ClientError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// NewInvalidCredentials is returned when the login endpoint rejects the
// operator's credentials. It deliberately carries no server detail.
func NewInvalidCredentials(component string) *ClientError {
	return New(ErrorCategoryCredentials, component, "login", "invalid credentials")
}

// NewSessionExpired is returned when an authenticated call came back
// unauthorized and the local credential has been invalidated.
func NewSessionExpired(component, operation string) *ClientError {
	return New(ErrorCategorySession, component, operation, "session expired")
}

// NewRequestFailed is returned for a well-formed request the server rejected
func NewRequestFailed(component, path string, status int) *ClientError {
	e := New(ErrorCategoryRequest, component, path, "request failed")
	e.Status = status
	return e
}

// NewNetworkError is returned for transport-level failures with no response
func NewNetworkError(component, operation string, err error) *ClientError {
	return Wrap(err, ErrorCategoryNetwork, component, operation)
}

// NewMalformedPayload describes an unparseable streaming frame. The
// synchronizer logs these and moves on; they never reach a caller.
func NewMalformedPayload(component string, err error) *ClientError {
	return Wrap(err, ErrorCategoryPayload, component, "decode frame")
}

// NewOrderRejected is returned when a submission is refused locally,
// e.g. while another order is still in flight.
func NewOrderRejected(component, message string) *ClientError {
	return New(ErrorCategoryOrder, component, "submit", message)
}

// NewConfigurationError reports an invalid or missing configuration value
func NewConfigurationError(component, message string) *ClientError {
	return New(ErrorCategoryConfiguration, component, "load", message)
}

func categoryOf(err error) (ErrorCategory, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Category, true
	}
	return "", false
}

// IsSessionExpired reports whether err is a mid-session invalidation
func IsSessionExpired(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategorySession
}

// IsInvalidCredentials reports whether err is a rejected login
func IsInvalidCredentials(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategoryCredentials
}

// IsNetworkError reports whether err is a transport-level failure
func IsNetworkError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategoryNetwork
}

// IsRequestFailed reports whether err is a server-side rejection, and if so
// returns the HTTP status it carried
func IsRequestFailed(err error) (int, bool) {
	var ce *ClientError
	if errors.As(err, &ce) && ce.Category == ErrorCategoryRequest {
		return ce.Status, true
	}
	return 0, false
}
