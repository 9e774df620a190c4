// Package errors provides standardized error types for the domain layer.
// Categories map one-to-one onto the transport behavior: input,
// validation and precondition errors become 400s with a user-visible
// reply; external-service and timeout errors become 500s.
package errors

import (
	"errors"
	"fmt"
)

// Standard error categories
var (
	// ErrInvalidInput indicates a malformed inbound message or payload
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAmount indicates an amount outside the allowed bounds
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrPrecondition indicates a required prior state is missing
	ErrPrecondition = errors.New("precondition failed")

	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrExternalService indicates an upstream dependency failed
	ErrExternalService = errors.New("external service error")

	// ErrTimeout indicates an external call exceeded its deadline
	ErrTimeout = errors.New("operation timed out")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// WithRetryable marks the error as retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

// InputError creates an invalid-input error with user-facing text
func InputError(message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "INVALID_INPUT",
		Message: message,
	}
}

// FormatError creates an error for an unparsable command
func FormatError(message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "FORMAT_ERROR",
		Message: message,
	}
}

// AmountError creates an error for an out-of-bounds amount
func AmountError(message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidAmount,
		Code:    "INVALID_AMOUNT",
		Message: message,
	}
}

// PreconditionError creates an error for missing prior state
func PreconditionError(message string) *DomainError {
	return &DomainError{
		Err:     ErrPrecondition,
		Code:    "PRECONDITION_FAILED",
		Message: message,
	}
}

// ExternalServiceError creates a retryable upstream-failure error
func ExternalServiceError(service string, err error) *DomainError {
	return &DomainError{
		Err:       ErrExternalService,
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("%s is unavailable: %v", service, err),
		Retryable: true,
	}
}

// TimeoutError creates a distinguishable, retryable timeout error
func TimeoutError(operation string, err error) *DomainError {
	return &DomainError{
		Err:       ErrTimeout,
		Code:      "TIMEOUT",
		Message:   fmt.Sprintf("%s timed out", operation),
		Retryable: true,
	}
}

// InternalError creates an internal error
func InternalError(message string, err error) *DomainError {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return &DomainError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidAmount checks if an error is an amount-bounds error
func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

// IsPrecondition checks if an error is a precondition error
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsExternalService checks if an error is an upstream failure
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// IsTimeout checks if an error is a timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the error is safe to retry
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}

// GetMessage extracts the human-readable message from a domain error
func GetMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
