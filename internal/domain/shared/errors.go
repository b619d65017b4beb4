package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeCurrencyMismatch       = "CURRENCY_MISMATCH"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so callers can match
// against the sentinels below with errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail returns a copy of the error with an extra detail entry.
func (e *DomainError) WithDetail(key, value string) *DomainError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrValidation             = NewDomainError(CodeValidation, "Validation failed")
	ErrCurrencyMismatch       = NewDomainError(CodeCurrencyMismatch, "Currency mismatch")
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidStateTransition = NewDomainError(CodeInvalidStateTransition, "Operation not allowed in current state")
	ErrInvalidAmount          = NewDomainError(CodeInvalidAmount, "Amount must be positive")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
)

// NewValidationError reports malformed input.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewCurrencyMismatchError reports an operation mixing two currencies.
func NewCurrencyMismatchError(expected, actual string) *DomainError {
	return NewDomainError(CodeCurrencyMismatch,
		fmt.Sprintf("currency mismatch: expected %s, got %s", expected, actual)).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// NewNotFoundError reports a missing resource of the given kind.
func NewNotFoundError(resource, id string) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %s not found", resource, id)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewInvalidStateTransitionError reports an action the current status forbids.
func NewInvalidStateTransitionError(action, status string) *DomainError {
	return NewDomainError(CodeInvalidStateTransition,
		fmt.Sprintf("cannot %s in status %s", action, status)).
		WithDetail("action", action).
		WithDetail("status", status)
}

// NewInvalidAmountError reports a non-positive amount where a positive one is required.
func NewInvalidAmountError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidAmount, fmt.Sprintf(format, args...))
}

// ErrorCode extracts the domain code from err, or "" when err is not a DomainError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
