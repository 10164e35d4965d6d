package timeline

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes write failures. The codes double as the wire codes
// of the HTTP error envelope.
type ErrorCode string

const (
	// CodeValidation marks a malformed or out-of-range payload. Nothing was mutated.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeConflict marks a stale client revision. Nothing was mutated.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeTransient marks a storage or network failure that is safe to retry
	// with the same idempotency key.
	CodeTransient ErrorCode = "TRANSIENT_ERROR"

	// CodeFatal marks an unexpected failure.
	CodeFatal ErrorCode = "FATAL_ERROR"
)

// Error is the typed error returned by the gateway and surfaced by the
// remote client.
type Error struct {
	Code    ErrorCode
	Message string

	// ProjectID identifies the affected project, when known.
	ProjectID string

	// CurrentRevision is the canonical revision at the time of a conflict.
	CurrentRevision int64

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ProjectID != "" {
		msg += fmt.Sprintf(" (project=%s)", e.ProjectID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports that clientRevision no longer matches the
// project's current revision.
func NewConflictError(projectID string, clientRevision, currentRevision int64) *Error {
	return &Error{
		Code:            CodeConflict,
		Message:         fmt.Sprintf("stale revision %d, current is %d", clientRevision, currentRevision),
		ProjectID:       projectID,
		CurrentRevision: currentRevision,
	}
}

func NewTransientError(message string, err error) *Error {
	return &Error{Code: CodeTransient, Message: message, Err: err}
}

func NewFatalError(message string, err error) *Error {
	return &Error{Code: CodeFatal, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeFatal for untyped errors.
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeFatal
}

func IsValidation(err error) bool { return hasCode(err, CodeValidation) }
func IsConflict(err error) bool   { return hasCode(err, CodeConflict) }
func IsTransient(err error) bool  { return hasCode(err, CodeTransient) }
func IsFatal(err error) bool      { return hasCode(err, CodeFatal) }

func hasCode(err error, code ErrorCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
