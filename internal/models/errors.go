package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure of the extraction/insertion pipeline.
type ErrorKind int

const (
	// ErrorKindSelector: a configured path matched more than one value.
	ErrorKindSelector ErrorKind = iota + 1
	// ErrorKindPayloadParse: missing or malformed payload, or a selected value with no scalar mapping.
	ErrorKindPayloadParse
	// ErrorKindConversion: a fallback string parse into the target type failed.
	ErrorKindConversion
	// ErrorKindTarget: the database could not be reached or rejected the statement.
	ErrorKindTarget
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindSelector:
		return "selector"
	case ErrorKindPayloadParse:
		return "payload"
	case ErrorKindConversion:
		return "conversion"
	case ErrorKindTarget:
		return "target"
	default:
		return "unknown"
	}
}

// ServiceError is the typed failure returned by the pipeline.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error // Optional underlying cause
}

func (e *ServiceError) Error() string {
	switch e.Kind {
	case ErrorKindSelector:
		return "Error processing JSON path: " + e.Message
	case ErrorKindPayloadParse:
		return "Failed processing payload: " + e.Message
	case ErrorKindConversion:
		return "Failed converted expected type: " + e.Message
	case ErrorKindTarget:
		return "Error connecting target: " + e.Message
	default:
		return e.Message
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ClientCaused reports whether the failure comes from the inbound event or the
// mapping rather than from the database.
func (e *ServiceError) ClientCaused() bool {
	return e.Kind != ErrorKindTarget
}

func SelectorError(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrorKindSelector, Message: fmt.Sprintf(format, args...)}
}

func PayloadParseError(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrorKindPayloadParse, Message: fmt.Sprintf(format, args...)}
}

func ConversionError(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrorKindConversion, Message: fmt.Sprintf(format, args...)}
}

// TargetError wraps a database failure.
func TargetError(err error) *ServiceError {
	return &ServiceError{Kind: ErrorKindTarget, Message: err.Error(), Err: err}
}

// KindOf returns the kind of the first ServiceError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return 0
}

// APIError represents a standardized error response format for the API.
type APIError struct {
	Code    string      `json:"code"`              // Application-specific error code (e.g., "SELECTOR_ERROR")
	Message string      `json:"message"`           // Human-readable message describing the error
	Details interface{} `json:"details,omitempty"` // Optional field for additional error details
}

// Predefined application-specific error codes
const (
	ErrorCodeSelector            = "SELECTOR_ERROR"
	ErrorCodePayload             = "PAYLOAD_ERROR"
	ErrorCodeConversion          = "CONVERSION_ERROR"
	ErrorCodeTarget              = "TARGET_ERROR"
	ErrorCodeInvalidEvent        = "INVALID_EVENT"
	ErrorCodeUnauthorized        = "UNAUTHORIZED"
	ErrorCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrorCodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// ErrorCode maps an error kind to its API error code.
func (k ErrorKind) ErrorCode() string {
	switch k {
	case ErrorKindSelector:
		return ErrorCodeSelector
	case ErrorKindPayloadParse:
		return ErrorCodePayload
	case ErrorKindConversion:
		return ErrorCodeConversion
	case ErrorKindTarget:
		return ErrorCodeTarget
	default:
		return ErrorCodeInternalServerError
	}
}
