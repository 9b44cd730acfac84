package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown  ErrorCode = "UNKNOWN"
	ErrInternal ErrorCode = "INTERNAL"

	// Template errors: unresolved or malformed $(...) placeholder,
	// bad tag, forbidden character in an expanded path
	ErrTemplateSyntax ErrorCode = "TEMPLATE_SYNTAX"

	// Resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrResourceInvalid  ErrorCode = "RESOURCE_INVALID"

	// Deployment errors
	ErrDeployIO     ErrorCode = "DEPLOY_IO"
	ErrDeployLocked ErrorCode = "DEPLOY_LOCKED"

	// Library loading errors
	ErrLibraryLoad ErrorCode = "LIBRARY_LOAD"

	// Configuration errors: incompatible builder options, missing
	// mandatory templates
	ErrConfiguration ErrorCode = "CONFIGURATION"
)

// ResdeployError represents a structured error with code and details
type ResdeployError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *ResdeployError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ResdeployError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *ResdeployError) Is(target error) bool {
	var targetErr *ResdeployError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new ResdeployError with the given code and message
func New(code ErrorCode, message string) *ResdeployError {
	return &ResdeployError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new ResdeployError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *ResdeployError {
	return &ResdeployError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a ResdeployError
func Wrap(err error, code ErrorCode, message string) *ResdeployError {
	if err == nil {
		return nil
	}
	return &ResdeployError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ResdeployError {
	if err == nil {
		return nil
	}
	return &ResdeployError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *ResdeployError) WithDetail(key string, value interface{}) *ResdeployError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *ResdeployError) WithDetails(details map[string]interface{}) *ResdeployError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var rdErr *ResdeployError
	if errors.As(err, &rdErr) {
		return rdErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a ResdeployError
func GetErrorCode(err error) ErrorCode {
	var rdErr *ResdeployError
	if errors.As(err, &rdErr) {
		return rdErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a ResdeployError
func GetErrorDetails(err error) map[string]interface{} {
	var rdErr *ResdeployError
	if errors.As(err, &rdErr) {
		return rdErr.Details
	}
	return nil
}
