package errors

import (
	"fmt"
)

// ErrorCategory groups gateway failures for logging and metrics labels
type ErrorCategory string

const (
	CategoryTransport      ErrorCategory = "transport"
	CategoryDecode         ErrorCategory = "decode"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryInvalidRequest ErrorCategory = "invalid_request"
)

// UnknownOperationError is returned when an endpoint key is not recognized.
// Reaching it means a programming error, not a gateway fault.
type UnknownOperationError struct {
	Operation string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown gateway operation: %q", e.Operation)
}

// TransportError represents a failed outbound call: connection failure,
// non-2xx status, or an empty body.
type TransportError struct {
	Message string
	Code    int // HTTP status code, 0 when no response was received

	// Body holds the decoded JSON body of a non-2xx response, when there was one.
	// Gateway errors usually carry errorCode/errorMessage here.
	Body map[string]any

	Err error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("transport error: %s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("transport error: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a response body is not valid JSON
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode gateway response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TokenAcquisitionError is returned when the client-credential exchange is
// rejected or answers without an access token
type TokenAcquisitionError struct {
	GatewayMessage string
	Err            error
}

func (e *TokenAcquisitionError) Error() string {
	switch {
	case e.GatewayMessage != "":
		return fmt.Sprintf("failed to acquire access token: %s", e.GatewayMessage)
	case e.Err != nil:
		return fmt.Sprintf("failed to acquire access token: %v", e.Err)
	default:
		return "failed to acquire access token"
	}
}

func (e *TokenAcquisitionError) Unwrap() error {
	return e.Err
}

// Category reports the category of a gateway error for metrics labels.
// Unknown errors are reported as transport failures.
func Category(err error) ErrorCategory {
	switch err.(type) {
	case *DecodeError:
		return CategoryDecode
	case *TokenAcquisitionError:
		return CategoryAuthentication
	case *UnknownOperationError, *ValidationError:
		return CategoryInvalidRequest
	default:
		return CategoryTransport
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
