package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific failure class of a chat turn.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeUnauthorized indicates no usable upstream credential.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeGatewayFailure indicates an upstream call failed.
	ErrCodeGatewayFailure ErrorCode = "GATEWAY_FAILURE"
	// ErrCodeRunFailed indicates the run ended as failed, cancelled, expired or incomplete.
	ErrCodeRunFailed ErrorCode = "RUN_FAILED"
	// ErrCodeTimeout indicates the poll budget was exhausted.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeMalformedReply indicates the latest thread message is not an assistant reply.
	ErrCodeMalformedReply ErrorCode = "MALFORMED_REPLY"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTurnInFlight indicates another turn is still running on the surface.
	ErrCodeTurnInFlight ErrorCode = "TURN_IN_FLIGHT"
	// ErrCodeNotFound indicates the requested resource does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error represents a structured error of a chat turn.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *Error) GetCode() ErrorCode {
	return e.Code
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string, cause error) *Error {
	return &Error{Code: ErrCodeUnauthorized, Message: msg, Cause: cause}
}

// GatewayFailure creates a gateway failure for the named upstream operation.
func GatewayFailure(op string, cause error) *Error {
	return (&Error{
		Code:    ErrCodeGatewayFailure,
		Message: fmt.Sprintf("%s failed", op),
		Cause:   cause,
	}).WithContext("operation", op)
}

// RunFailed creates a run failure carrying the terminal upstream status.
func RunFailed(runID, status, lastError string) *Error {
	e := &Error{
		Code:    ErrCodeRunFailed,
		Message: fmt.Sprintf("run %s", status),
	}
	e.WithContext("run_id", runID).WithContext("status", status)
	if lastError != "" {
		e.WithContext("last_error", lastError)
	}
	return e
}

// Timeout creates a poll budget exhaustion error.
func Timeout(runID string, attempts int) *Error {
	return (&Error{
		Code:    ErrCodeTimeout,
		Message: "assistant timeout",
	}).WithContext("run_id", runID).WithContext("attempts", attempts)
}

// MalformedReply creates a malformed reply error.
func MalformedReply(msg string) *Error {
	return &Error{Code: ErrCodeMalformedReply, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *Error {
	return &Error{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// TurnInFlight creates a turn in flight error.
func TurnInFlight() *Error {
	return &Error{Code: ErrCodeTurnInFlight, Message: "another turn is in flight"}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: msg}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
