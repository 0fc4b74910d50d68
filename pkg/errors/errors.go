package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates input was rejected before any store call
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeLocationUnavailable indicates the caller's position could not be resolved
	ErrorTypeLocationUnavailable ErrorType = "LOCATION_UNAVAILABLE"

	// ErrorTypeDiscoveryUnavailable indicates the provider store could not be queried
	ErrorTypeDiscoveryUnavailable ErrorType = "DISCOVERY_UNAVAILABLE"

	// ErrorTypeConversationCreateFailed indicates a conversation lookup or create failed
	ErrorTypeConversationCreateFailed ErrorType = "CONVERSATION_CREATE_FAILED"

	// ErrorTypeMessageSendFailed indicates a message could not be appended
	ErrorTypeMessageSendFailed ErrorType = "MESSAGE_SEND_FAILED"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the user may retry the action that produced the error.
func (e *AppError) Retryable() bool {
	switch e.Type {
	case ErrorTypeDiscoveryUnavailable, ErrorTypeConversationCreateFailed,
		ErrorTypeMessageSendFailed, ErrorTypeLocationUnavailable, ErrorTypeExternal:
		return true
	}
	return false
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or ErrorTypeInternal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Type == t
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewLocationUnavailableError creates an error for a denied or timed out location lookup
func NewLocationUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeLocationUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewDiscoveryUnavailableError creates an error for a failed provider query
func NewDiscoveryUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDiscoveryUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewConversationCreateFailedError creates an error for a failed conversation lookup or create
func NewConversationCreateFailedError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConversationCreateFailed,
		Message: message,
		Err:     err,
	}
}

// NewMessageSendFailedError creates an error for a failed message append
func NewMessageSendFailedError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeMessageSendFailed,
		Message: message,
		Err:     err,
	}
}
