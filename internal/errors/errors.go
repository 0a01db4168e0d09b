// Package errors provides structured error types for the classtrack pipeline.
// All errors include a category, code, and message for consistent handling
// across components. The key distinction is between recognized processing
// failures (the message stays on the queue for redelivery) and everything
// else (fatal to the process).
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline concern.
type ErrorCategory string

const (
	ErrCategoryConfig       ErrorCategory = "CONFIG"
	ErrCategoryNotification ErrorCategory = "NOTIFICATION"
	ErrCategoryDecode       ErrorCategory = "DECODE"
	ErrCategoryTransform    ErrorCategory = "TRANSFORM"
	ErrCategorySnapshot     ErrorCategory = "SNAPSHOT"
	ErrCategoryStore        ErrorCategory = "STORE"
	ErrCategoryInternal     ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeMissingEnv    = "MISSING_ENV"
	CodeInvalidConfig = "INVALID_CONFIG"

	// Notification codes
	CodeBadEnvelope     = "BAD_ENVELOPE"
	CodeUnexpectedEvent = "UNEXPECTED_EVENT"
	CodeBadObjectKey    = "BAD_OBJECT_KEY"

	// Decode codes
	CodeUnknownKind  = "UNKNOWN_KIND"
	CodeBadContainer = "BAD_CONTAINER"

	// Transform codes
	CodeMissingField = "MISSING_FIELD"
	CodeBadField     = "BAD_FIELD"

	// Snapshot codes
	CodeCourseNotFound  = "COURSE_NOT_FOUND"
	CodeBadDocument     = "BAD_DOCUMENT"
	CodeUnknownDataType = "UNKNOWN_DATA_TYPE"

	// Store codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeReadFailed  = "READ_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// IsProcessingFailure reports whether the error is a recognized processing
// failure: a condition attributable to the content of one notification,
// which should leave the message for transport-level redelivery instead of
// terminating the process. Store and internal errors are never processing
// failures.
func IsProcessingFailure(err error) bool {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Category {
	case ErrCategoryNotification, ErrCategoryDecode, ErrCategoryTransform, ErrCategorySnapshot:
		return true
	default:
		return false
	}
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *PipelineError {
	return New(ErrCategoryConfig, code, message)
}

func NewNotificationError(code, message string) *PipelineError {
	return New(ErrCategoryNotification, code, message)
}

func NewDecodeError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryDecode, code, message, cause)
}

func NewTransformError(code, message string) *PipelineError {
	return New(ErrCategoryTransform, code, message)
}

func NewSnapshotError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategorySnapshot, code, message, cause)
}

func NewStoreError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
