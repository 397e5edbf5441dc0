package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the failure classes a connectivity check can produce
type ErrorType string

const (
	// ErrorTypeConfigurationMissing indicates required configuration (the access token) is absent
	ErrorTypeConfigurationMissing ErrorType = "CONFIGURATION_MISSING"

	// ErrorTypeTransport indicates the backend could not be reached or rejected the request
	ErrorTypeTransport ErrorType = "TRANSPORT"

	// ErrorTypeProtocol indicates the backend answered with GraphQL errors
	ErrorTypeProtocol ErrorType = "PROTOCOL"

	// ErrorTypeResponseShape indicates the response did not match the expected search schema
	ErrorTypeResponseShape ErrorType = "RESPONSE_SHAPE"

	// ErrorTypeInterrupted indicates the run was cancelled by the user
	ErrorTypeInterrupted ErrorType = "INTERRUPTED"

	// ErrorTypeInternal indicates an unclassified internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents a classified error
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

// Detail returns the human-readable part of the error without the type prefix
func (e *AppError) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr != nil {
		return appErr.Type == t
	}
	return false
}

// NewConfigurationMissingError creates a new configuration error
func NewConfigurationMissingError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfigurationMissing,
		Message: message,
	}
}

// NewTransportError creates a new transport error
func NewTransportError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewProtocolError creates a new GraphQL protocol error
func NewProtocolError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeProtocol,
		Message: message,
	}
}

// NewResponseShapeError creates a new response format error
func NewResponseShapeError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeResponseShape,
		Message: message,
		Err:     err,
	}
}

// NewInterruptedError creates a new interruption error
func NewInterruptedError(err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInterrupted,
		Message: "check cancelled",
		Err:     err,
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
