package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeProvider      ErrorType = "provider"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeQuotaExceeded ErrorType = "quota_exceeded"
	ErrorTypeAggregate     ErrorType = "aggregate"
	ErrorTypeInternal      ErrorType = "internal"
)

// Caller-visible failure codes. Only configuration and aggregate errors
// cross the engine boundary; the HTTP layer maps both to 503.
const (
	CodeNoProviderAvailable = "NO_PROVIDER_AVAILABLE"
	CodeAllProvidersFailed  = "ALL_PROVIDERS_FAILED"
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

// NewConfigurationError reports that no credentialed provider can serve the
// request. Fatal to the single request, not to the process.
func NewConfigurationError(message string) *DomainError {
	return NewDomainError(ErrorTypeConfiguration, message, nil)
}

// NewValidationError reports a malformed request
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil)
}

// NewAggregateError reports that every candidate in the fallback chain failed
func NewAggregateError(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeAggregate, message, err)
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// GetErrorType extracts the error type, defaulting to internal
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails extracts details from a domain error, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return GetErrorType(err) == ErrorTypeConfiguration
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsQuotaExceededError checks if an error is a quota exhaustion error
func IsQuotaExceededError(err error) bool {
	return GetErrorType(err) == ErrorTypeQuotaExceeded
}

// IsAggregateError checks if an error is an aggregate fallback failure
func IsAggregateError(err error) bool {
	return GetErrorType(err) == ErrorTypeAggregate
}
