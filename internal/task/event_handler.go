package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scaffold-api/internal/events"
)

// ErrTaskIDMismatch is returned for events whose payload describes a task
// other than the one the event names.
var ErrTaskIDMismatch = errors.New("event task ID does not match payload")

// TaskSubmitter accepts tasks for background execution.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler implements the events.EventHandler interface
// to turn generation request events into submitted tasks.
type TaskFactoryEventHandler struct {
	taskFactory TaskFactory
	taskRunner  TaskSubmitter
	logger      *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses the given task factory
// to create tasks, and submits them to the provided task runner.
func NewTaskFactoryEventHandler(
	taskFactory TaskFactory,
	taskRunner TaskSubmitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		taskFactory: taskFactory,
		taskRunner:  taskRunner,
		logger:      logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent decodes the record carried by a project generation event,
// builds its task and submits it. Events of other types are ignored.
// Submission errors are returned unchanged in the chain so callers can
// detect a full queue.
func (h *TaskFactoryEventHandler) HandleEvent(
	ctx context.Context,
	event *events.TaskRequestEvent,
) error {
	if event.Type != TaskTypeProjectGeneration {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var record Record
	if err := event.UnmarshalPayload(&record); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if record.ID != event.TaskID {
		h.logger.Error("event payload names a different task",
			"event_id", event.ID,
			"event_task_id", event.TaskID,
			"payload_task_id", record.ID)
		return fmt.Errorf("%w: event is for %s, payload is %s", ErrTaskIDMismatch, event.TaskID, record.ID)
	}

	task, err := h.taskFactory.CreateTask(record)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"task_id", record.ID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.taskRunner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task created and submitted",
		"task_id", task.ID(),
		"event_id", event.ID)
	return nil
}

// Ensure TaskFactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// Ensure TaskRunner satisfies TaskSubmitter
var _ TaskSubmitter = (*TaskRunner)(nil)
