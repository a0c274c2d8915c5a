package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Callers match with errors.Is.
var (
	ErrInvalidSampleType   = errors.New("invalid sample type")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrFeatureExtraction   = errors.New("feature extraction failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotifierUnavailable = errors.New("notifier unavailable")
)

// MatchError represents a standardized error response
type MatchError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *MatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidSampleType   = "INVALID_SAMPLE_TYPE"
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeFeatureExtraction   = "FEATURE_EXTRACTION_FAILURE"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeNotifierUnavailable = "NOTIFIER_UNAVAILABLE"
	ErrCodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer      = "INTERNAL_SERVER_ERROR"
	ErrCodeRequestTimeout      = "REQUEST_TIMEOUT"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
	cause   error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap exposes the sentinel the validation failure belongs to
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Wrap attaches a sentinel cause and returns e
func (e *ValidationError) Wrap(cause error) *ValidationError {
	e.cause = cause
	return e
}

// NewMatchError creates a new MatchError with timestamp
func NewMatchError(code, message, details, requestID string) *MatchError {
	return &MatchError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps an error onto its standardized code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSampleType):
		return ErrCodeInvalidSampleType
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrFeatureExtraction):
		return ErrCodeFeatureExtraction
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrInvalidTransition):
		return ErrCodeInvalidTransition
	case errors.Is(err, ErrNotifierUnavailable):
		return ErrCodeNotifierUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeRequestTimeout
	default:
		return ErrCodeInternalServer
	}
}
