package api

import (
	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/task"
)

// GenerateResponse is returned when a generation request is accepted.
type GenerateResponse struct {
	TaskID  uuid.UUID       `json:"task_id"`
	Status  task.TaskStatus `json:"status"`
	Message string          `json:"message"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
