package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/store"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task type constants
const (
	// TaskTypeProjectGeneration represents the task type for generating a project archive
	TaskTypeProjectGeneration = "project_generation"
)

// Status messages recorded on transitions
const (
	MessagePending    = "Task created, waiting for generation to start"
	MessageProcessing = "Generating project"
	MessageCompleted  = "Project generated successfully"
	MessageRestarted  = "Generation failed: interrupted by server restart"
)

// DownloadPathPrefix is the route under which completed archives are served.
const DownloadPathPrefix = "/api/download/"

// allowedTransitions lists the permitted next states for each state.
// Terminal states have no entry.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusProcessing, TaskStatusFailed},
	TaskStatusProcessing: {TaskStatusCompleted, TaskStatusFailed},
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether a record in state from may move to state to.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateUpdate checks a requested status update against a record's current
// status. A download URL must accompany a transition to completed and must
// not accompany any other.
func ValidateUpdate(current, next TaskStatus, downloadURL string) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", store.ErrInvalidTransition, next)
	}
	if !CanTransition(current, next) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, next)
	}
	if (next == TaskStatusCompleted) != (downloadURL != "") {
		return fmt.Errorf("%w: download URL must be set exactly when completed", store.ErrInvalidTransition)
	}
	return nil
}

// Record is the persisted state of one generation task. Config never changes
// after creation; only Status, Message, DownloadURL and UpdatedAt do.
type Record struct {
	ID          uuid.UUID            `json:"task_id"`
	Status      TaskStatus           `json:"status"`
	Message     string               `json:"message"`
	DownloadURL string               `json:"download_url,omitempty"`
	Config      domain.ProjectConfig `json:"config"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewRecord creates a pending record with a fresh identifier.
func NewRecord(cfg domain.ProjectConfig) Record {
	now := time.Now().UTC()
	return Record{
		ID:        uuid.New(),
		Status:    TaskStatusPending,
		Message:   MessagePending,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply returns a copy of r moved to next. The caller is expected to have
// validated the update with ValidateUpdate.
func (r Record) Apply(next TaskStatus, message, downloadURL string, at time.Time) Record {
	r.Status = next
	r.Message = message
	r.DownloadURL = downloadURL
	r.UpdatedAt = at.UTC()
	return r
}

// DownloadURLFor returns the download reference for a completed task.
func DownloadURLFor(id uuid.UUID) string {
	return DownloadPathPrefix + id.String()
}

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Record returns the record the task was created from
	Record() Record

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Abandoner is implemented by tasks that can be marked failed without
// running, releasing whatever artifacts they may have left behind.
type Abandoner interface {
	Abandon(ctx context.Context, message string) error
}

// TaskFactory rebuilds runnable tasks from persisted records.
type TaskFactory interface {
	CreateTask(record Record) (Task, error)
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// TaskStore persists task records. Implementations must be safe for
// concurrent use and must never lose an update.
type TaskStore interface {
	// SaveTask inserts a new record. Returns store.ErrDuplicate if the id exists.
	SaveTask(ctx context.Context, record Record) error

	// GetTask returns the record for id or store.ErrTaskNotFound.
	GetTask(ctx context.Context, id uuid.UUID) (Record, error)

	// UpdateTaskStatus moves a record to status, overwriting its message and
	// download URL. Returns store.ErrTaskNotFound for unknown ids and
	// store.ErrInvalidTransition when ValidateUpdate rejects the change.
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status TaskStatus, message, downloadURL string) error

	// DeleteTask removes a record. Returns store.ErrTaskNotFound for unknown ids.
	DeleteTask(ctx context.Context, id uuid.UUID) error

	// GetTasksByStatus returns every record in the given status, oldest first.
	GetTasksByStatus(ctx context.Context, status TaskStatus) ([]Record, error)
}
