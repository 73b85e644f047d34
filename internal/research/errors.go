package research

import (
	"errors"
	"fmt"
)

// ErrCapabilityUnavailable is returned when the research engine cannot be
// reached or was never configured. It is a configuration error and must
// not be retried.
var ErrCapabilityUnavailable = errors.New("research capability unavailable")

// ExecutionError wraps a transient failure during a research or summarization
// call. Callers may retry with backoff.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("research execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// NewExecutionError wraps err as a retryable execution failure
func NewExecutionError(err error) *ExecutionError {
	return &ExecutionError{Cause: err}
}

// ValidationError reports a malformed request field. It is raised
// synchronously, before any background job is enqueued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError reports that field failed validation for reason
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
