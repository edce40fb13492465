package services

import (
	"errors"
	"fmt"

	"github.com/carelane/governor/models"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeSafetyBlocked      ErrorType = "safety_blocked"
	ErrorTypeInvalidTransition  ErrorType = "invalid_state_transition"
	ErrorTypeExecutionRetryable ErrorType = "execution_retryable"
	ErrorTypeExecutionTerminal  ErrorType = "execution_terminal"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// NewValidationError creates a validation error for one offending field
func NewValidationError(field, reason string) *DomainError {
	return NewDomainError(ErrorTypeValidation, fmt.Sprintf("%s: %s", field, reason), nil).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewSafetyBlockedError creates a policy rejection error
func NewSafetyBlockedError(reason, ruleName string) *DomainError {
	return NewDomainError(ErrorTypeSafetyBlocked, reason, nil).
		WithDetail("reason", reason).
		WithDetail("rule", ruleName)
}

// NewInvalidTransitionError signals a transition attempt on a non-pending record
func NewInvalidTransitionError(current models.ApprovalStatus, attempted models.ApprovalDecision) *DomainError {
	return NewDomainError(ErrorTypeInvalidTransition,
		fmt.Sprintf("cannot apply %q to record in state %q", attempted, current), nil).
		WithDetail("current", string(current)).
		WithDetail("attempted", string(attempted))
}

// Domain error variables

var (
	ErrApprovalNotFound  = NewDomainError(ErrorTypeNotFound, "approval record not found", nil)
	ErrCommandNotFound   = NewDomainError(ErrorTypeNotFound, "command not found", nil)
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrStoreUnavailable  = NewDomainError(ErrorTypeExecutionRetryable, "record store unavailable", nil)
	ErrExecutionRejected = NewDomainError(ErrorTypeExecutionTerminal, "record store rejected mutation", nil)
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrAuditAppendFailed = NewDomainError(ErrorTypeInternal, "audit append failed", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsSafetyBlockedError checks if an error is a policy rejection
func IsSafetyBlockedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeSafetyBlocked
	}
	return false
}

// IsInvalidTransitionError checks if an error is an invalid state transition
func IsInvalidTransitionError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInvalidTransition
	}
	return false
}

// IsRetryableExecutionError checks if an execution error may be retried
func IsRetryableExecutionError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExecutionRetryable
	}
	return false
}

// IsTerminalExecutionError checks if an execution error is final
func IsTerminalExecutionError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExecutionTerminal
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
