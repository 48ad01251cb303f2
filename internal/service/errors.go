package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scaffold-api/internal/store"
	"github.com/phrazzld/scaffold-api/internal/task"
)

// Sentinel errors for expected conditions. Callers check them with errors.Is;
// the API layer maps them to status codes.
var (
	// ErrTaskNotFound indicates that no task exists for the identifier,
	// including identifiers that are not valid UUIDs.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotCompleted indicates that the archive was requested before the
	// task completed. It is wrapped by *TaskNotCompletedError.
	ErrTaskNotCompleted = errors.New("task not completed")

	// ErrArchiveNotFound indicates a completed task whose archive file is
	// missing from storage.
	ErrArchiveNotFound = errors.New("archive not found")
)

// TaskNotCompletedError carries the status a task was in when its archive
// was requested.
type TaskNotCompletedError struct {
	Status task.TaskStatus
}

// Error implements the error interface.
func (e *TaskNotCompletedError) Error() string {
	return fmt.Sprintf("task not completed: status is %s", e.Status)
}

// Unwrap returns ErrTaskNotCompleted.
func (e *TaskNotCompletedError) Unwrap() error {
	return ErrTaskNotCompleted
}

// GenerationServiceError wraps unexpected failures with operation context.
type GenerationServiceError struct {
	// Operation is the operation that failed (e.g. "submit", "open_archive")
	Operation string
	// Message is a human-readable description of the failure
	Message string
	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *GenerationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GenerationServiceError) Unwrap() error {
	return e.Err
}

// NewGenerationServiceError wraps err, returning service sentinels directly.
// store.ErrTaskNotFound is translated to ErrTaskNotFound.
func NewGenerationServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, ErrArchiveNotFound):
		return ErrArchiveNotFound
	}

	return &GenerationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
