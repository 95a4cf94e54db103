package taskline

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a task is asked to move against the
// state table.
var ErrInvalidTransition = errors.New("invalid task state transition")

// ErrorCategory classifies errors by how the adapter handles them.
type ErrorCategory string

const (
	// ErrorValidation indicates a malformed inbound request. Validation
	// errors are rejected before any task is created and never persisted.
	ErrorValidation ErrorCategory = "validation"

	// ErrorAgent indicates a model or tool failure during generation.
	// The owning task transitions to failed unless a durable retry applies.
	ErrorAgent ErrorCategory = "agent"

	// ErrorTransient indicates a temporary fault (persistence write failure,
	// rate limit, network blip) that can be retried with backoff.
	ErrorTransient ErrorCategory = "transient"

	// ErrorPermanent indicates a fault that retrying cannot fix.
	ErrorPermanent ErrorCategory = "permanent"

	// ErrorCanceled indicates caller-initiated cancellation. The task
	// transitions to canceled; this is never surfaced as a failure.
	ErrorCanceled ErrorCategory = "canceled"
)

// CategorizedError is an error that carries handling information.
type CategorizedError interface {
	error
	Category() ErrorCategory
	// Retryable returns true if the category is ErrorTransient.
	Retryable() bool
}

// Error is a categorized error with an optional underlying cause.
type Error struct {
	Msg   string
	Cat   ErrorCategory
	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.Cat
}

// Retryable returns true if the error is transient.
func (e *Error) Retryable() bool {
	return e.Cat == ErrorTransient
}

// NewValidationError creates an error for a malformed inbound request.
func NewValidationError(msg string, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorValidation, Cause: cause}
}

// NewAgentError creates an error for a model or tool failure during generation.
func NewAgentError(msg string, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorAgent, Cause: cause}
}

// NewTransientError creates a retryable error.
func NewTransientError(msg string, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorTransient, Cause: cause}
}

// NewPermanentError creates an error that should not be retried.
func NewPermanentError(msg string, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorPermanent, Cause: cause}
}

// NewCancellationError creates an error representing caller-initiated
// cancellation.
func NewCancellationError(msg string, cause error) *Error {
	return &Error{Msg: msg, Cat: ErrorCanceled, Cause: cause}
}

// CategoryOf returns the category of an error, or ErrorPermanent for
// uncategorized errors.
func CategoryOf(err error) ErrorCategory {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category()
	}
	return ErrorPermanent
}

// IsValidation returns true if the error is categorized as a validation error.
func IsValidation(err error) bool {
	return CategoryOf(err) == ErrorValidation
}

// IsTransient returns true if the error or any wrapped error is transient.
func IsTransient(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorTransient
	}
	return false
}

// IsPermanent returns true if the error is categorized as permanent.
func IsPermanent(err error) bool {
	return CategoryOf(err) == ErrorPermanent
}

// IsCanceled returns true if the error represents cancellation, either
// through the taxonomy or a context cancellation.
func IsCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == ErrorCanceled
	}
	return false
}
