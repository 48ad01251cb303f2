package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/events"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/phrazzld/scaffold-api/internal/task"
	"github.com/phrazzld/scaffold-api/internal/workspace"
)

// TaskReader is the read side of the task store used by the service.
type TaskReader interface {
	GetTask(ctx context.Context, id uuid.UUID) (task.Record, error)
}

// ArchiveLocator resolves where a task's archive is stored.
type ArchiveLocator interface {
	ArchivePath(id uuid.UUID) string
}

// Archive is an opened task archive. The caller must close File.
type Archive struct {
	File    *os.File
	Name    string
	Size    int64
	ModTime time.Time
}

// GenerationService provides the operations of the task API.
type GenerationService interface {
	// Submit validates cfg and schedules its generation. It returns the
	// pending record without waiting for generation to start.
	Submit(ctx context.Context, cfg domain.ProjectConfig) (task.Record, error)

	// GetTask returns the current record of a task.
	GetTask(ctx context.Context, rawID string) (task.Record, error)

	// OpenArchive opens the archive of a completed task.
	OpenArchive(ctx context.Context, rawID string) (*Archive, error)
}

type generationServiceImpl struct {
	tasks    TaskReader
	archives ArchiveLocator
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(
	tasks TaskReader,
	archives ArchiveLocator,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (GenerationService, error) {
	if tasks == nil {
		return nil, errors.New("task reader cannot be nil")
	}
	if archives == nil {
		return nil, errors.New("archive locator cannot be nil")
	}
	if emitter == nil {
		return nil, errors.New("event emitter cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &generationServiceImpl{
		tasks:    tasks,
		archives: archives,
		emitter:  emitter,
		logger:   logger.With("component", "generation_service"),
	}, nil
}

// Submit implements GenerationService.
func (s *generationServiceImpl) Submit(ctx context.Context, cfg domain.ProjectConfig) (task.Record, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		log.Debug("rejected project configuration", "error", err)
		return task.Record{}, err
	}

	record := task.NewRecord(cfg)
	event, err := events.NewTaskRequestEvent(task.TaskTypeProjectGeneration, record.ID, record)
	if err != nil {
		return task.Record{}, NewGenerationServiceError("submit", "failed to create generation event", err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to schedule generation",
			"task_id", record.ID,
			"error", err)
		return task.Record{}, NewGenerationServiceError("submit", "failed to schedule generation", err)
	}

	log.Info("generation task submitted",
		"task_id", record.ID,
		"project_name", cfg.ProjectName)
	return record, nil
}

// GetTask implements GenerationService.
func (s *generationServiceImpl) GetTask(ctx context.Context, rawID string) (task.Record, error) {
	id, err := parseTaskID(rawID)
	if err != nil {
		return task.Record{}, err
	}

	record, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return task.Record{}, NewGenerationServiceError("get_task", "failed to load task", err)
	}
	return record, nil
}

// OpenArchive implements GenerationService.
func (s *generationServiceImpl) OpenArchive(ctx context.Context, rawID string) (*Archive, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	record, err := s.GetTask(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if record.Status != task.TaskStatusCompleted {
		return nil, &TaskNotCompletedError{Status: record.Status}
	}

	path := s.archives.ArchivePath(record.ID)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("archive missing for completed task", "task_id", record.ID)
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, NewGenerationServiceError("open_archive", "failed to open archive", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, NewGenerationServiceError("open_archive", "failed to stat archive", err)
	}

	return &Archive{
		File:    f,
		Name:    workspace.ArchiveFileName(record.ID),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// parseTaskID treats malformed identifiers as unknown tasks.
func parseTaskID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrTaskNotFound, domain.ErrInvalidID)
	}
	return id, nil
}
