package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Authentication errors
	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"

	// Authorization errors
	ErrCodeAuthorizationDenied ErrorCode = "AUTHORIZATION_DENIED"

	// Validation errors
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Lookup errors. Deliberately undifferentiated between "unknown" and
	// "expired" so token holders cannot probe for meeting existence.
	ErrCodeNotFoundOrExpired ErrorCode = "NOT_FOUND_OR_EXPIRED"

	// Storage errors, retryable by the caller
	ErrCodeTransientStorage ErrorCode = "TRANSIENT_STORAGE_ERROR"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	StatusCode int               `json:"-"`
	Fields     map[string]string `json:"fields,omitempty"`
	Err        error             `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WrapWithStatus wraps an existing error with an AppError and specific status code
func WrapWithStatus(code ErrorCode, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// WithField attaches a field-keyed validation detail to an AppError
func (e *AppError) WithField(field, detail string) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = detail
	return e
}

// AuthenticationRequiredError means no authenticated identity was supplied
func AuthenticationRequiredError() *AppError {
	return NewWithStatus(ErrCodeAuthenticationRequired, "Authentication required", http.StatusUnauthorized)
}

// AuthorizationDeniedError covers wrong-role and not-meeting-creator failures.
// The message is deliberately generic.
func AuthorizationDeniedError() *AppError {
	return NewWithStatus(ErrCodeAuthorizationDenied, "You do not have permission to perform this action", http.StatusForbidden)
}

// ValidationError is a structurally bad input (e.g. malformed token): 400
func ValidationError(message string) *AppError {
	return NewWithStatus(ErrCodeValidationFailed, message, http.StatusBadRequest)
}

// FieldValidationError is a field-keyed semantic validation failure: 422
func FieldValidationError(field, detail string) *AppError {
	e := NewWithStatus(ErrCodeValidationFailed, "Validation failed", http.StatusUnprocessableEntity)
	return e.WithField(field, detail)
}

// NotFoundOrExpiredError is the single user-visible result for unknown,
// expired, and ended meeting tokens
func NotFoundOrExpiredError() *AppError {
	return NewWithStatus(ErrCodeNotFoundOrExpired, "This meeting link is invalid or has expired", http.StatusNotFound)
}

// TransientStorageError wraps a storage failure the caller may retry
func TransientStorageError(err error) *AppError {
	return WrapWithStatus(ErrCodeTransientStorage, "Temporary storage error, please retry", http.StatusServiceUnavailable, err)
}

// InternalError covers environment failures such as an unavailable entropy source
func InternalError(message string) *AppError {
	return NewWithStatus(ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError type
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from an error, wrapping non-AppErrors as InternalError.
// Internal detail never reaches the response body.
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return InternalError("Internal server error")
}
