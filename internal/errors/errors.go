// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies generation failures.
type ErrorType string

const (
	// Generic service errors
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeTimeout    ErrorType = "timeout"

	// Generation-run taxonomy
	ErrorTypeCollaborator    ErrorType = "collaborator_failure"
	ErrorTypeEmptyResponse   ErrorType = "empty_response"
	ErrorTypeRefusalDetected ErrorType = "refusal_detected"
	ErrorTypeTruncatedOutput ErrorType = "truncated_output"
	ErrorTypeParseFailure    ErrorType = "parse_failure"
	ErrorTypeStalledProgress ErrorType = "stalled_progress"
	ErrorTypeCanceled        ErrorType = "canceled"
)

// AppError is the application error carrier. Fatal conditions abort the
// current generation run without corrupting previously accepted scenes.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError reports rejected input.
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError reports a missing record or file.
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewCollaboratorError reports a transport or API failure from a collaborator
// call. Surfaced to the caller with the underlying message; never retried
// internally except the documented parameter-downgrade case.
func NewCollaboratorError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeCollaborator, message, originalError)
}

// NewEmptyResponseError reports a successful collaborator call that returned
// no content. Fatal for that call, not silently retried.
func NewEmptyResponseError(message string) *AppError {
	return NewAppError(ErrorTypeEmptyResponse, message, nil)
}

// NewRefusalError reports refusal language with no scene markers present.
// Recovered automatically by switching to fixed-size batch mode.
func NewRefusalError(message string) *AppError {
	return NewAppError(ErrorTypeRefusalDetected, message, nil)
}

// NewTruncatedError reports that continuation retries were exhausted; the
// message carries the last known scene index.
func NewTruncatedError(message string) *AppError {
	return NewAppError(ErrorTypeTruncatedOutput, message, nil)
}

// NewParseError reports zero scene markers in a non-empty, non-refusal reply;
// the message carries a preview of the raw content for diagnosis.
func NewParseError(message string) *AppError {
	return NewAppError(ErrorTypeParseFailure, message, nil)
}

// NewStalledError reports a continuation batch that made no forward progress,
// distinct from exceeding the retry bound.
func NewStalledError(message string) *AppError {
	return NewAppError(ErrorTypeStalledProgress, message, nil)
}

// NewCanceledError reports a cooperative cancellation between scenes.
func NewCanceledError(message string) *AppError {
	return NewAppError(ErrorTypeCanceled, message, nil)
}

// IsType checks the taxonomy type of an error chain.
func IsType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// IsValidationError checks for a validation error.
func IsValidationError(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsNotFoundError checks for a not-found error.
func IsNotFoundError(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsRefusal checks for detected refusal language.
func IsRefusal(err error) bool { return IsType(err, ErrorTypeRefusalDetected) }

// IsStalled checks for a stalled continuation loop.
func IsStalled(err error) bool { return IsType(err, ErrorTypeStalledProgress) }

// IsCanceled checks for cooperative cancellation.
func IsCanceled(err error) bool { return IsType(err, ErrorTypeCanceled) }

// generateErrorCode maps a type to its user-facing code.
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeCollaborator:
		return "COLLABORATOR_FAILURE"
	case ErrorTypeEmptyResponse:
		return "EMPTY_RESPONSE"
	case ErrorTypeRefusalDetected:
		return "REFUSAL_DETECTED"
	case ErrorTypeTruncatedOutput:
		return "TRUNCATED_OUTPUT"
	case ErrorTypeParseFailure:
		return "PARSE_FAILURE"
	case ErrorTypeStalledProgress:
		return "STALLED_PROGRESS"
	case ErrorTypeCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError wraps an existing error, preserving an existing AppError type.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
