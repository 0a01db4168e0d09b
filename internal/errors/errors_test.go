package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	err := New(ErrCategoryNotification, CodeUnexpectedEvent, "unexpected S3 event")
	expected := "[NOTIFICATION:UNEXPECTED_EVENT] unexpected S3 event"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStore, CodeWriteFailed, "insert failed", cause)
	expected := "[STORE:WRITE_FAILED] insert failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryDecode, CodeBadContainer, "bad container", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestPipelineError_Is(t *testing.T) {
	err1 := New(ErrCategoryTransform, CodeMissingField, "first")
	err2 := New(ErrCategoryTransform, CodeMissingField, "second")
	err3 := New(ErrCategoryTransform, CodeBadField, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsProcessingFailure(t *testing.T) {
	tests := []struct {
		category   ErrorCategory
		code       string
		processing bool
	}{
		{ErrCategoryNotification, CodeUnexpectedEvent, true},
		{ErrCategoryNotification, CodeBadEnvelope, true},
		{ErrCategoryDecode, CodeUnknownKind, true},
		{ErrCategoryTransform, CodeMissingField, true},
		{ErrCategorySnapshot, CodeCourseNotFound, true},
		{ErrCategoryStore, CodeWriteFailed, false},
		{ErrCategoryConfig, CodeMissingEnv, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if got := IsProcessingFailure(err); got != tt.processing {
			t.Errorf("IsProcessingFailure(%s:%s) = %v, want %v",
				tt.category, tt.code, got, tt.processing)
		}
	}
}

func TestIsProcessingFailure_WrappedChain(t *testing.T) {
	inner := New(ErrCategoryTransform, CodeMissingField, "user_uuid missing")
	outer := fmt.Errorf("processing record 3: %w", inner)
	if !IsProcessingFailure(outer) {
		t.Error("processing classification should survive wrapping")
	}
}

func TestIsProcessingFailure_PlainError(t *testing.T) {
	if IsProcessingFailure(fmt.Errorf("plain")) {
		t.Error("plain errors are not processing failures")
	}
	if IsProcessingFailure(nil) {
		t.Error("nil is not a processing failure")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := New(ErrCategorySnapshot, CodeCourseNotFound, "no course")
	if got := GetCategory(err); got != ErrCategorySnapshot {
		t.Errorf("GetCategory = %q, want %q", got, ErrCategorySnapshot)
	}
	if got := GetCode(err); got != CodeCourseNotFound {
		t.Errorf("GetCode = %q, want %q", got, CodeCourseNotFound)
	}
	if got := GetCategory(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCategory(plain) = %q, want empty", got)
	}
}
