// Package errors defines the client error taxonomy.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific class of client failure.
type ErrorCode string

const (
	// ErrCodeTransport indicates a network failure or a non-2xx response without a structured body.
	ErrCodeTransport ErrorCode = "TRANSPORT"
	// ErrCodeProtocol indicates a structured {error} body returned by the backend.
	ErrCodeProtocol ErrorCode = "PROTOCOL"
	// ErrCodeTimeout indicates an operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeClosed indicates the session or affordance is no longer usable.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// ClientError represents a structured error raised by the client core.
type ClientError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *ClientError) WithContext(key string, value interface{}) *ClientError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Transport creates a transport error.
func Transport(msg string, cause error) *ClientError {
	return &ClientError{Code: ErrCodeTransport, Message: msg, Cause: cause}
}

// Protocol creates a protocol error carrying the backend's message verbatim.
func Protocol(msg string) *ClientError {
	return &ClientError{Code: ErrCodeProtocol, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string) *ClientError {
	return &ClientError{Code: ErrCodeTimeout, Message: msg}
}

// Canceled creates a canceled error.
func Canceled(msg string, cause error) *ClientError {
	return &ClientError{Code: ErrCodeCanceled, Message: msg, Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *ClientError {
	return &ClientError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Closed creates a closed error.
func Closed(msg string) *ClientError {
	return &ClientError{Code: ErrCodeClosed, Message: msg}
}

// CodeOf returns the code of the first ClientError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ce *ClientError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// UserMessage returns the text shown to the user for err.
// Protocol errors are surfaced verbatim; everything else gets fallback.
func UserMessage(err error, fallback string) string {
	var ce *ClientError
	if stderrors.As(err, &ce) && ce.Code == ErrCodeProtocol && ce.Message != "" {
		return ce.Message
	}
	return fallback
}
