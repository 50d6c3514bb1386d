package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies engine failures for every transport.
type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeValidation         ErrorCode = "VALIDATION"
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeBlocked            ErrorCode = "BLOCKED"
)

// Error is a typed engine error. Two errors match under errors.Is when
// their codes are equal.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrNotFound           = NewError(ErrCodeNotFound, "not found")
	ErrValidation         = NewError(ErrCodeValidation, "validation failed")
	ErrInvariantViolation = NewError(ErrCodeInvariantViolation, "invariant violation")
	ErrBlocked            = NewError(ErrCodeBlocked, "blocked by dependencies")
)

// NotFound reports a missing entity, e.g. NotFound("task", id).
func NotFound(kind, id string) *Error {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s %s not found", kind, id))
}

func Validationf(format string, args ...any) *Error {
	return NewError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

func Invariantf(format string, args ...any) *Error {
	return NewError(ErrCodeInvariantViolation, fmt.Sprintf(format, args...))
}

func Blockedf(format string, args ...any) *Error {
	return NewError(ErrCodeBlocked, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err carries the given code.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf returns the code of a domain error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ""
}
