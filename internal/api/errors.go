package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/scaffold-api/internal/api/shared"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/events"
	"github.com/phrazzld/scaffold-api/internal/service"
	"github.com/phrazzld/scaffold-api/internal/store"
	"github.com/phrazzld/scaffold-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrTaskNotCompleted):
		return http.StatusConflict

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrArchiveNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return http.StatusNotFound

	// The task could not be scheduled; nothing was created.
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, events.ErrNoHandlers),
		errors.Is(err, store.ErrStoreClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err that never
// includes internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var missing *domain.MissingFieldsError
	var notCompleted *service.TaskNotCompletedError

	switch {
	case errors.As(err, &missing):
		return missing.Error()

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, domain.ErrValidation):
		return "Invalid project configuration"

	case errors.As(err, &notCompleted):
		return fmt.Sprintf("Project not ready yet (status: %s)", notCompleted.Status)

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrArchiveNotFound):
		return "Project archive not found"

	case errors.Is(err, task.ErrQueueFull):
		return "Too many pending generations, try again later"

	case errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, events.ErrNoHandlers),
		errors.Is(err, store.ErrStoreClosed):
		return "Generation is temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}
