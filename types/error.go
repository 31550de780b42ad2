package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request error codes
const (
	ErrValidation       ErrorCode = "VALIDATION_ERROR"
	ErrEmptyUpload      ErrorCode = "EMPTY_UPLOAD"
	ErrInvalidImage     ErrorCode = "INVALID_IMAGE"
	ErrImageReadFailed  ErrorCode = "IMAGE_READ_FAILED"
	ErrPayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
)

// Inference error codes
const (
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrTimeout          ErrorCode = "TIMEOUT"
	ErrRequestCanceled  ErrorCode = "REQUEST_CANCELED"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is the de-facto status for requests the client abandoned.
const StatusClientClosedRequest = 499

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode    `json:"code"`
	Message    string       `json:"message"`
	HTTPStatus int          `json:"http_status,omitempty"`
	Fields     []FieldError `json:"fields,omitempty"`
	Cause      error        `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithField appends a field-level validation failure.
func (e *Error) WithField(field, message string) *Error {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// Status returns the explicit HTTP status, or the default status for the code.
func (e *Error) Status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return StatusForCode(e.Code)
}

// StatusForCode maps an error code to its default HTTP status.
func StatusForCode(code ErrorCode) int {
	switch code {
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrEmptyUpload, ErrInvalidImage:
		return http.StatusBadRequest
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrRequestCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
