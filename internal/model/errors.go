package model

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an engine failure for callers.
type ErrorCode string

const (
	CodeInvalidPayload      ErrorCode = "INVALID_PAYLOAD"
	CodeInvalidMediaType    ErrorCode = "INVALID_MEDIA_TYPE"
	CodeFileTooLarge        ErrorCode = "FILE_TOO_LARGE"
	CodeTooManyFiles        ErrorCode = "TOO_MANY_FILES"
	CodeRequiredFileMissing ErrorCode = "REQUIRED_FILE_MISSING"
	CodeUnknownFormField    ErrorCode = "UNKNOWN_FORM_FIELD"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeConflict            ErrorCode = "CONFLICT"
	CodeUnavailable         ErrorCode = "PRIMARY_STORE_UNAVAILABLE"
	// CodeSchemaIncompatible means the database lacks a table the engine
	// cannot work without. Not retryable.
	CodeSchemaIncompatible ErrorCode = "SCHEMA_INCOMPATIBLE"
)

// Validation reports whether the code is caller-fixable input rejection.
func (c ErrorCode) Validation() bool {
	switch c {
	case CodeInvalidPayload, CodeInvalidMediaType, CodeFileTooLarge,
		CodeTooManyFiles, CodeRequiredFileMissing, CodeUnknownFormField:
		return true
	}
	return false
}

// Fatal reports whether the store answered in a way no retry or fallback
// can fix.
func (c ErrorCode) Fatal() bool {
	return c == CodeSchemaIncompatible
}

// Error is a classified engine error. Field names the offending payload or
// form field for validation errors; Current carries the actual state for
// review conflicts.
type Error struct {
	Code    ErrorCode
	Message string
	Field   string
	Current Status
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FieldError builds a validation error tied to a field.
func FieldError(code ErrorCode, field, format string, args ...any) *Error {
	return &Error{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing submission, place, or media item.
func NotFound(what, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

// Conflict reports a transition not permitted from the current state.
func Conflict(current Status, format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Current: current, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a primary-store failure as retryable.
func Unavailable(err error, format string, args ...any) *Error {
	return &Error{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// Incompatible wraps a schema failure that must be surfaced, not degraded.
func Incompatible(err error, format string, args ...any) *Error {
	return &Error{Code: CodeSchemaIncompatible, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsError extracts the classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the classification of err, or "" for unclassified errors.
func CodeOf(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given classification.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
