package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorKind is the normalized classification of a generation error.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindCapacityExhausted ErrorKind = "capacity_exhausted"
	KindAuthError         ErrorKind = "auth_error"
	KindRateLimit         ErrorKind = "rate_limit"
	KindTimeout           ErrorKind = "timeout"
	KindNetworkError      ErrorKind = "network_error"
	KindTransient         ErrorKind = "transient"
	KindFatal             ErrorKind = "fatal"
	KindCancelled         ErrorKind = "cancelled"
	KindUnknown           ErrorKind = "unknown"
)

// Kinds outside the capability taxonomy, used by the store and API surface.
const (
	KindNotFound    ErrorKind = "not_found"
	KindJobFailed   ErrorKind = "job_failed"
	KindUnavailable ErrorKind = "unavailable"
)

// Validation field tags
const (
	FieldImageBuffer       = "imageBuffer"
	FieldBrandName         = "brandName"
	FieldProductName       = "productName"
	FieldPackageVariations = "packageVariations"
	FieldAdPlatforms       = "adPlatforms"
	FieldTone              = "tone"
	FieldLanguage          = "language"
	FieldClaudeAPIKey      = "claudeApiKey"
	FieldOpenAIAPIKey      = "openaiApiKey"
	FieldGeminiAPIKey      = "geminiApiKey"
	FieldConcurrentJobs    = "concurrentJobs"
)

// Error is a generation-specific error with a normalized kind.
type Error struct {
	Kind      ErrorKind              `json:"kind"`
	Stage     StageName              `json:"stage,omitempty"`
	Field     string                 `json:"field,omitempty"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "unknown generation error"
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Stage, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewInvalidInputError creates a validation error tagged with the offending field.
func NewInvalidInputError(field, message string) *Error {
	return &Error{
		Kind:      KindInvalidInput,
		Field:     field,
		Message:   message,
		Retryable: false,
	}
}

// NewCapacityError creates the admission rejection error.
func NewCapacityError(current, max int) *Error {
	return &Error{
		Kind:    KindCapacityExhausted,
		Field:   FieldConcurrentJobs,
		Message: fmt.Sprintf("maximum concurrent jobs reached (%d/%d)", current, max),
		Details: map[string]interface{}{
			"current": current,
			"max":     max,
		},
		Retryable: false,
	}
}

// NewAuthError creates an upstream credential rejection error. Never retried.
func NewAuthError(stage StageName, message string, cause error) *Error {
	return &Error{
		Kind:      KindAuthError,
		Stage:     stage,
		Message:   message,
		Cause:     cause,
		Retryable: false,
	}
}

// NewRateLimitError creates an upstream rate-limit error. Retried with backoff.
func NewRateLimitError(stage StageName, message string, cause error) *Error {
	return &Error{
		Kind:      KindRateLimit,
		Stage:     stage,
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// NewTimeoutError creates a deadline-exceeded error for a stage call.
func NewTimeoutError(stage StageName, timeout time.Duration) *Error {
	return &Error{
		Kind:      KindTimeout,
		Stage:     stage,
		Message:   fmt.Sprintf("call exceeded timeout of %s", timeout),
		Retryable: true,
	}
}

// NewNetworkError creates a transient transport failure error. Retried.
func NewNetworkError(stage StageName, message string, cause error) *Error {
	return &Error{
		Kind:      KindNetworkError,
		Stage:     stage,
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// NewTransientError creates a retryable upstream failure error.
func NewTransientError(stage StageName, message string, cause error) *Error {
	return &Error{
		Kind:      KindTransient,
		Stage:     stage,
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// NewFatalError creates an upstream semantic rejection error. Never retried.
func NewFatalError(stage StageName, message string, cause error) *Error {
	return &Error{
		Kind:      KindFatal,
		Stage:     stage,
		Message:   message,
		Cause:     cause,
		Retryable: false,
	}
}

// NewCancelledError creates a cancellation error observed at a suspension point.
func NewCancelledError(stage StageName) *Error {
	return &Error{
		Kind:      KindCancelled,
		Stage:     stage,
		Message:   "job was cancelled",
		Retryable: false,
	}
}

// NewJobFailedError wraps a terminal job failure for WaitForCompletion callers.
func NewJobFailedError(jobID, message string) *Error {
	return &Error{
		Kind:    KindJobFailed,
		Message: message,
		Details: map[string]interface{}{
			"job_id": jobID,
		},
		Retryable: false,
	}
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Retryable
	}
	return false
}

// KindOf returns the normalized kind of an error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Kind
	}
	return KindUnknown
}

// Classify normalizes an arbitrary error into an *Error for the given stage.
// Context deadline and cancellation errors map to Timeout and Cancelled; net
// errors map to NetworkError; everything unmatched becomes Unknown, which is
// treated like Transient and retried.
func Classify(err error, stage StageName) *Error {
	if err == nil {
		return nil
	}

	var gErr *Error
	if errors.As(err, &gErr) {
		if gErr.Stage == "" {
			gErr.Stage = stage
		}
		return gErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(stage)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:      KindTimeout,
			Stage:     stage,
			Message:   "call deadline exceeded",
			Cause:     err,
			Retryable: true,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{
				Kind:      KindTimeout,
				Stage:     stage,
				Message:   err.Error(),
				Cause:     err,
				Retryable: true,
			}
		}
		return NewNetworkError(stage, err.Error(), err)
	}

	return &Error{
		Kind:      KindUnknown,
		Stage:     stage,
		Message:   err.Error(),
		Cause:     err,
		Retryable: true,
	}
}

// Common errors
var (
	// ErrJobNotFound is returned when a job cannot be found in the store.
	ErrJobNotFound = &Error{
		Kind:    KindNotFound,
		Message: "job not found",
	}

	// ErrJobTerminal is returned when mutating a job already in a terminal state.
	ErrJobTerminal = &Error{
		Kind:    KindFatal,
		Message: "job is in a terminal state",
	}

	// ErrStageSkipped is returned when mutating a stage that was skipped at creation.
	ErrStageSkipped = &Error{
		Kind:    KindFatal,
		Message: "stage was skipped at creation",
	}

	// ErrShutdown is returned for submissions arriving after Shutdown began.
	ErrShutdown = &Error{
		Kind:    KindUnavailable,
		Message: "orchestrator is shutting down",
	}
)
