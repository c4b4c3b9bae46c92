package shared

import (
	"errors"
	"fmt"
)

// Error codes carried by DomainError. Callers on both sides of the RPC boundary
// switch on these values, so they are part of the wire contract.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeBusinessRuleViolation  = "BUSINESS_RULE_VIOLATION"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodePersistenceFailure     = "PERSISTENCE_FAILURE"
	CodeUpstreamUnavailable    = "UPSTREAM_UNAVAILABLE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches another DomainError by code, so sentinels work with errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of the error with an extra detail entry
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps cause in its chain
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrValidation             = NewDomainError(CodeValidation, "Invalid input provided")
	ErrBusinessRuleViolation  = NewDomainError(CodeBusinessRuleViolation, "Business rule violated")
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrConflict               = NewDomainError(CodeConflict, "Resource conflicts with current state")
	ErrInvalidStateTransition = NewDomainError(CodeInvalidStateTransition, "Status transition not allowed")
	ErrPersistenceFailure     = NewDomainError(CodePersistenceFailure, "Persistence operation failed")
	ErrUpstreamUnavailable    = NewDomainError(CodeUpstreamUnavailable, "Upstream service unavailable")
)

// NewValidationError creates a VALIDATION_ERROR with a formatted message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a NOT_FOUND error for the given resource
func NewNotFoundError(resource string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", resource, id)).
		WithDetail("resource", resource)
}

// NewConflictError creates a CONFLICT error with a formatted message
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewPersistenceError wraps a storage failure
func NewPersistenceError(op string, cause error) *DomainError {
	return WrapDomainError(CodePersistenceFailure, fmt.Sprintf("failed to %s", op), cause)
}

// ErrorCode returns the DomainError code in err's chain, or "" when there is none
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
