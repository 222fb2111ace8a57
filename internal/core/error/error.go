package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// StorageErrorMessage describes leads store failures.
	StorageErrorMessage = "data storage query failed"
	// LLMErrorMessage describes language model failures.
	LLMErrorMessage = "language model call failed"
	// InternalConsistencyMessage marks a broken orchestration invariant.
	InternalConsistencyMessage = "internal consistency failure"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapStorage wraps a leads store failure. The query was well formed but did not run.
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, StorageErrorMessage)
}

// WrapLLM wraps a failed language model call.
func WrapLLM(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, LLMErrorMessage)
}

// Internal marks a defect in orchestration bookkeeping. These are logged, not
// shown to the user.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusInternalServerError, InternalConsistencyMessage)
}

// IsInternal reports whether err carries an internal-consistency failure.
func IsInternal(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Message == InternalConsistencyMessage
}

// StatusOf returns the HTTP-ish status attached to err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
