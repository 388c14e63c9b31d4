// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrSessionPaused      = errors.New("session is paused")
	ErrBudgetExhausted    = errors.New("ai budget is exhausted")
	ErrAlreadySubmitted   = errors.New("assessment has already been submitted")
	ErrSubmitInFlight     = errors.New("a submission is already in flight")
	ErrConfirmRequired    = errors.New("submission requires explicit confirmation")
	ErrNotPaused          = errors.New("session is not paused")
	ErrMissingToken       = errors.New("missing session token")
	ErrSessionNotFound    = errors.New("session not found")
	ErrFileNotFound       = errors.New("file not found in repository snapshot")
	ErrBridgeDisconnected = errors.New("terminal bridge is disconnected")
	ErrInputChannelFull   = errors.New("terminal input channel full")
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrHubNotRunning      = errors.New("event hub is not running")
	ErrSubscriberClosed   = errors.New("subscriber is closed")
	ErrJournalClosed      = errors.New("audit journal is closed")
)

// Error codes for client responses and backend payloads.
const (
	ErrCodeAssessmentPaused = "ASSESSMENT_PAUSED"
	ErrCodeBudgetExhausted  = "BUDGET_EXHAUSTED"
	ErrCodeAlreadySubmitted = "ALREADY_SUBMITTED"
	ErrCodeConfirmRequired  = "CONFIRM_REQUIRED"
	ErrCodeMissingToken     = "MISSING_TOKEN"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Pause reasons pushed by the assessment backend.
const (
	PauseReasonClaudeOutage = "claude_outage"
)

// PauseError is the structured pause signal the backend attaches to a
// response when the assessment clock must freeze. Any call in the
// interaction surface may return it.
type PauseError struct {
	Code        string // always ErrCodeAssessmentPaused
	PauseReason string // e.g. claude_outage
	Message     string // user-facing explanation
}

func (e *PauseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("assessment paused (%s): %s", e.PauseReason, e.Message)
	}
	return fmt.Sprintf("assessment paused (%s)", e.PauseReason)
}

// AsPauseSignal reports whether err carries a backend pause signal.
func AsPauseSignal(err error) (*PauseError, bool) {
	var pe *PauseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// BackendError represents a transient error from an assessment backend call.
// These are recoverable: the caller may retry manually.
type BackendError struct {
	Op         string // Operation that failed
	StatusCode int    // HTTP status if a response was received
	Err        error  // Underlying error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a new BackendError.
func NewBackendError(op string, statusCode int, err error) *BackendError {
	return &BackendError{
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
