package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/archive"
	"github.com/phrazzld/scaffold-api/internal/generation"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/phrazzld/scaffold-api/internal/redact"
	"github.com/phrazzld/scaffold-api/internal/store"
)

// finalizeTimeout bounds the store writes and cleanup that close out a task
// after its own context has been cancelled.
const finalizeTimeout = 30 * time.Second

// Errors returned by the generation task constructors
var (
	ErrNilGenerator  = errors.New("generator cannot be nil")
	ErrNilArchiver   = errors.New("archiver cannot be nil")
	ErrNilWorkspaces = errors.New("workspaces cannot be nil")
	ErrEmptyTaskID   = errors.New("task ID cannot be empty")
)

// Workspaces lays out per-task artifacts on disk.
type Workspaces interface {
	// Create makes the isolated working directory for id and returns its path.
	Create(id uuid.UUID) (string, error)

	// ArchivePath is where the archive for id is written.
	ArchivePath(id uuid.UUID) string

	// Remove deletes the workspace and archive for id. Missing paths are not an error.
	Remove(id uuid.UUID) error
}

// GenerationDeps are the collaborators shared by every generation task.
type GenerationDeps struct {
	Store      TaskStore
	Generator  generation.Generator
	Archiver   archive.Archiver
	Workspaces Workspaces
	Logger     *slog.Logger
}

func (d GenerationDeps) validate() error {
	switch {
	case d.Store == nil:
		return ErrNilStore
	case d.Generator == nil:
		return ErrNilGenerator
	case d.Archiver == nil:
		return ErrNilArchiver
	case d.Workspaces == nil:
		return ErrNilWorkspaces
	case d.Logger == nil:
		return ErrNilLogger
	}
	return nil
}

// GenerationTask generates, archives and publishes one project. It is the
// only writer of its record's status after submission.
type GenerationTask struct {
	record Record
	deps   GenerationDeps
	logger *slog.Logger
}

// NewGenerationTask creates a generation task for a record.
func NewGenerationTask(record Record, deps GenerationDeps) (*GenerationTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if record.ID == uuid.Nil {
		return nil, ErrEmptyTaskID
	}

	return &GenerationTask{
		record: record,
		deps:   deps,
		logger: deps.Logger.With("task_type", TaskTypeProjectGeneration, "task_id", record.ID),
	}, nil
}

// ID returns the task's unique identifier
func (t *GenerationTask) ID() uuid.UUID {
	return t.record.ID
}

// Type returns the task type identifier
func (t *GenerationTask) Type() string {
	return TaskTypeProjectGeneration
}

// Record returns the record the task was created from
func (t *GenerationTask) Record() Record {
	return t.record
}

// Execute runs the pipeline: mark processing, create the workspace, run the
// generator, archive the result and mark completed. Any failure after the
// task started marks it failed and removes its workspace and archive.
func (t *GenerationTask) Execute(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, t.logger)
	id := t.record.ID

	if err := t.deps.Store.UpdateTaskStatus(ctx, id, TaskStatusProcessing, MessageProcessing, ""); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrTaskNotFound) {
			// Someone else already finished or removed the record.
			log.Warn("task is no longer pending, skipping", "error", err)
			return nil
		}
		return fmt.Errorf("failed to mark task processing: %w", err)
	}
	log.Info("generation started")
	started := time.Now()

	dir, err := t.deps.Workspaces.Create(id)
	if err != nil {
		return t.fail(ctx, log, err)
	}

	diagnostics, err := t.deps.Generator.Generate(ctx, dir, t.record.Config)
	if err != nil {
		return t.fail(ctx, log, err)
	}
	if diagnostics != "" {
		log.Warn("generator reported diagnostics", "diagnostics", redact.String(diagnostics))
	}

	if err := ctx.Err(); err != nil {
		return t.fail(ctx, log, err)
	}

	if err := t.deps.Archiver.Archive(dir, t.deps.Workspaces.ArchivePath(id)); err != nil {
		return t.fail(ctx, log, fmt.Errorf("failed to archive project: %w", err))
	}

	finalCtx, cancel := finalizeContext(ctx)
	defer cancel()
	if err := t.deps.Store.UpdateTaskStatus(
		finalCtx, id, TaskStatusCompleted, MessageCompleted, DownloadURLFor(id),
	); err != nil {
		return t.fail(ctx, log, fmt.Errorf("failed to mark task completed: %w", err))
	}

	log.Info("generation completed", "duration", time.Since(started))
	return nil
}

// Abandon marks the task failed without running it and removes anything it
// may have left on disk. It is used for records a previous run never finished.
func (t *GenerationTask) Abandon(ctx context.Context, message string) error {
	finalCtx, cancel := finalizeContext(ctx)
	defer cancel()

	err := t.deps.Store.UpdateTaskStatus(finalCtx, t.record.ID, TaskStatusFailed, message, "")
	t.cleanup(t.logger)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	t.logger.Info("task abandoned", "message", message)
	return nil
}

// fail records cause as the task's failure and removes its artifacts.
// Store and cleanup errors are logged; cause is always returned.
func (t *GenerationTask) fail(ctx context.Context, log *slog.Logger, cause error) error {
	message := FailureMessage(cause)
	log.Error("generation failed", "error", redact.Error(cause))

	finalCtx, cancel := finalizeContext(ctx)
	defer cancel()

	if err := t.deps.Store.UpdateTaskStatus(finalCtx, t.record.ID, TaskStatusFailed, message, ""); err != nil {
		log.Error("failed to mark task failed", "error", err)
	}
	t.cleanup(log)

	return cause
}

func (t *GenerationTask) cleanup(log *slog.Logger) {
	if err := t.deps.Workspaces.Remove(t.record.ID); err != nil {
		log.Error("failed to remove task artifacts", "error", err)
	}
}

// FailureMessage renders a pipeline error as the message stored on a failed
// record, with credentials and host paths removed.
func FailureMessage(err error) string {
	detail := "unknown error"

	var exitErr *generation.ExitError
	switch {
	case errors.As(err, &exitErr):
		detail = exitErr.Error()
	case errors.Is(err, context.Canceled):
		detail = "generation was cancelled"
	case err != nil:
		detail = err.Error()
	}

	detail = strings.TrimSpace(redact.String(detail))
	if detail == "" {
		detail = "unknown error"
	}
	return "Generation failed: " + detail
}

func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}
