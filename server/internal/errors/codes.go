package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a specific hard-failure type for turn processing.
// Soft (business-rule) failures never become errors; they travel inside the
// conversation context instead.
type ErrorCode string

const (
	// ErrCodeEngineNotConfigured indicates no dialog engine endpoint is set.
	ErrCodeEngineNotConfigured ErrorCode = "ENGINE_NOT_CONFIGURED"
	// ErrCodeEngineUnavailable indicates the dialog engine could not be reached.
	ErrCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	// ErrCodeSessionStoreFailed indicates a session load or save failure.
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	// ErrCodeSessionConflict indicates a concurrent turn moved the session version.
	ErrCodeSessionConflict ErrorCode = "SESSION_CONFLICT"
	// ErrCodeActionTransport indicates a backend action's transport failed.
	ErrCodeActionTransport ErrorCode = "ACTION_TRANSPORT_FAILED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// TurnError represents a structured hard error for turn processing.
type TurnError struct {
	Code    ErrorCode
	Status  int // HTTP-like status for the caller; 400 when unset
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TurnError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status to report to the caller, defaulting to 400.
func (e *TurnError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// Retryable reports whether the caller may safely retry the turn.
func (e *TurnError) Retryable() bool {
	return e.Code == ErrCodeSessionConflict
}

// Convenience constructors for common error types.

// EngineNotConfigured creates an engine not configured error.
func EngineNotConfigured() *TurnError {
	return &TurnError{Code: ErrCodeEngineNotConfigured, Message: "dialog engine endpoint is not configured"}
}

// EngineUnavailable creates an engine unavailable error.
func EngineUnavailable(cause error) *TurnError {
	return &TurnError{Code: ErrCodeEngineUnavailable, Status: http.StatusBadGateway, Message: "dialog engine request failed", Cause: cause}
}

// SessionStoreFailed creates a session store failure error.
func SessionStoreFailed(msg string, cause error) *TurnError {
	return &TurnError{Code: ErrCodeSessionStoreFailed, Status: http.StatusInternalServerError, Message: msg, Cause: cause}
}

// SessionConflict creates a retryable version-conflict error.
func SessionConflict(userID string) *TurnError {
	return &TurnError{
		Code:    ErrCodeSessionConflict,
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("session for user %s was updated by a concurrent turn", userID),
	}
}

// ActionTransport creates a backend action transport error.
func ActionTransport(action string, cause error) *TurnError {
	return &TurnError{
		Code:    ErrCodeActionTransport,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("backend action %s failed", action),
		Cause:   cause,
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *TurnError {
	return &TurnError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string) *TurnError {
	return &TurnError{Code: ErrCodeTimeout, Status: http.StatusGatewayTimeout, Message: msg}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if turnErr, ok := err.(*TurnError); ok {
		return turnErr.Code == code
	}
	return false
}

// FromError extracts the TurnError from any error, wrapping unknown errors
// with the provided default code.
func FromError(err error, defaultCode ErrorCode) *TurnError {
	if turnErr, ok := err.(*TurnError); ok {
		return turnErr
	}
	return &TurnError{Code: defaultCode, Message: err.Error(), Cause: err}
}
