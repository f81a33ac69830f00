package controller

import (
	"errors"
	"fmt"
)

// Kind categorizes a controller error. The categories drive the console's
// propagation policy: fetch errors are absorbed by the poller, everything
// else is surfaced to the operator.
type Kind int

const (
	// KindConnection indicates a port open/close failure or an unreachable
	// controller service.
	KindConnection Kind = iota
	// KindCommandRejected indicates the controller refused a command (index
	// out of range, invalid valve mode or gas, channel inactive, value out
	// of range).
	KindCommandRejected
	// KindFetch indicates a snapshot poll failure. The poller swallows
	// these and retries on the next tick.
	KindFetch
	// KindProtocol indicates a malformed controller response.
	KindProtocol
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindCommandRejected:
		return "command rejected"
	case KindFetch:
		return "snapshot fetch error"
	case KindProtocol:
		return "protocol error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error type returned by every Client call.
type Error struct {
	Kind       Kind   // Category of error
	Message    string // Human-readable error message
	StatusCode int    // HTTP status code, 0 when the request never completed
	Err        error  // Underlying transport error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a connection-category error.
func NewConnectionError(message string, err error) *Error {
	return &Error{Kind: KindConnection, Message: message, Err: err}
}

// NewCommandRejectedError creates a command-rejection error. statusCode is
// the HTTP status the controller answered with.
func NewCommandRejectedError(message string, statusCode int) *Error {
	return &Error{Kind: KindCommandRejected, Message: message, StatusCode: statusCode}
}

// NewFetchError creates a transient snapshot-fetch error.
func NewFetchError(message string, err error) *Error {
	return &Error{Kind: KindFetch, Message: message, Err: err}
}

// NewProtocolError creates a malformed-response error.
func NewProtocolError(message string, err error) *Error {
	return &Error{Kind: KindProtocol, Message: message, Err: err}
}

func isKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}

// IsConnectionError reports whether err is a connection-category error.
func IsConnectionError(err error) bool { return isKind(err, KindConnection) }

// IsCommandRejected reports whether err is a controller command rejection.
func IsCommandRejected(err error) bool { return isKind(err, KindCommandRejected) }

// IsFetchError reports whether err is a transient snapshot fetch failure.
func IsFetchError(err error) bool { return isKind(err, KindFetch) }
