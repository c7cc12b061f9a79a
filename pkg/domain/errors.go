package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AppError for transport mapping.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidState ErrorKind = "invalid_state"
	KindForbidden    ErrorKind = "forbidden"
	KindInternal     ErrorKind = "internal"
)

// Generic error codes. Bounded contexts define their own on top of these.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"
)

// AppError is a typed failure surfaced to callers. Two AppErrors match under
// errors.Is when their codes are equal, so package-level sentinels can be
// compared against errors carrying a more specific message.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *AppError) Unwrap() error { return e.Err }

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *AppError) WithMessage(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy of e wrapping cause.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.Err = cause
	return &cp
}

// NewError creates an AppError.
func NewError(kind ErrorKind, code, msg string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg}
}

// NewValidationError creates a validation error.
func NewValidationError(msg string) *AppError {
	return NewError(KindValidation, CodeValidation, msg)
}

// NewConflictError creates a conflict error.
func NewConflictError(msg string) *AppError {
	return NewError(KindConflict, CodeConflict, msg)
}

// NewInvalidStateError creates an error for a disallowed state change.
func NewInvalidStateError(from, to string) *AppError {
	return NewError(KindInvalidState, CodeInvalidState, fmt.Sprintf("cannot transition from %s to %s", from, to))
}

// AsAppError extracts the AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}
