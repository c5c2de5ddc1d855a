// Package errors defines the structured error taxonomy for the agent core.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for agent and tool operations.
type ErrorCode string

const (
	// ErrCodeInvalidArguments indicates malformed tool input. Maps to 400.
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	// ErrCodeNotFound indicates a referenced entity is absent. Maps to 404.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeNotOwned indicates the entity belongs to another user. Maps to 403.
	ErrCodeNotOwned ErrorCode = "NOT_OWNED"
	// ErrCodeAmbiguousReference indicates an instruction matched multiple
	// entities. Non-terminal: it triggers a clarification turn, never a
	// caller-facing failure.
	ErrCodeAmbiguousReference ErrorCode = "AMBIGUOUS_REFERENCE"
	// ErrCodeProviderUnavailable indicates the completion service is down or
	// timed out. The turn is retryable.
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	// ErrCodePersistenceFailure indicates a conversation or task store write
	// failed. Fatal to the turn.
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
)

// Error is a structured error carrying a taxonomy code.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value to the error for structured logging.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Convenience constructors for the taxonomy.

func InvalidArguments(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidArguments, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NotOwned(format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotOwned, Message: fmt.Sprintf(format, args...)}
}

func AmbiguousReference(msg string) *Error {
	return &Error{Code: ErrCodeAmbiguousReference, Message: msg}
}

func ProviderUnavailable(msg string, cause error) *Error {
	return &Error{Code: ErrCodeProviderUnavailable, Message: msg, Cause: cause}
}

func PersistenceFailure(msg string, cause error) *Error {
	return &Error{Code: ErrCodePersistenceFailure, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with a taxonomy code.
func Wrap(cause error, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the taxonomy code from err, or returns defaultCode.
func CodeOf(err error, defaultCode ErrorCode) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return defaultCode
}

// HTTPStatus maps a taxonomy code to the status the boundary layer should
// return. AmbiguousReference intentionally maps to 200: a clarification is a
// normal assistant response.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidArguments:
		return 400
	case ErrCodeNotOwned:
		return 403
	case ErrCodeNotFound:
		return 404
	case ErrCodeProviderUnavailable:
		return 503
	case ErrCodePersistenceFailure:
		return 500
	default:
		return 200
	}
}
