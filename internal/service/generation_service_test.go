package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/events"
	"github.com/phrazzld/scaffold-api/internal/task"
	"github.com/phrazzld/scaffold-api/internal/task/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirArchives string

func (d dirArchives) ArchivePath(id uuid.UUID) string {
	return filepath.Join(string(d), id.String()+".zip")
}

type fixture struct {
	svc      GenerationService
	store    *task.MockTaskStore
	archives dirArchives
	emitted  []*events.TaskRequestEvent
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires the service to an emitter whose handler persists the
// submitted record, standing in for the task runner.
func newFixture(t *testing.T, handlerErr error) *fixture {
	t.Helper()

	f := &fixture{store: task.NewMockTaskStore(), archives: dirArchives(t.TempDir())}
	emitter := events.NewInMemoryEventEmitter(quietLogger())
	emitter.RegisterHandler(events.EventHandlerFunc(func(ctx context.Context, e *events.TaskRequestEvent) error {
		f.emitted = append(f.emitted, e)
		if handlerErr != nil {
			return handlerErr
		}
		var r task.Record
		if err := e.UnmarshalPayload(&r); err != nil {
			return err
		}
		return f.store.SaveTask(ctx, r)
	}))

	svc, err := NewGenerationService(f.store, f.archives, emitter, quietLogger())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewGenerationService_Validation(t *testing.T) {
	store := task.NewMockTaskStore()
	emitter := events.NewInMemoryEventEmitter(quietLogger())
	archives := dirArchives(t.TempDir())

	_, err := NewGenerationService(nil, archives, emitter, quietLogger())
	assert.Error(t, err)
	_, err = NewGenerationService(store, nil, emitter, quietLogger())
	assert.Error(t, err)
	_, err = NewGenerationService(store, archives, nil, quietLogger())
	assert.Error(t, err)
	_, err = NewGenerationService(store, archives, emitter, nil)
	assert.Error(t, err)
}

func TestSubmit_CreatesPendingTask(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	record, err := f.svc.Submit(ctx, storetest.SampleConfig("alpha"))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, task.TaskStatusPending, record.Status)
	assert.Equal(t, task.MessagePending, record.Message)

	require.Len(t, f.emitted, 1)
	assert.Equal(t, task.TaskTypeProjectGeneration, f.emitted[0].Type)
	assert.Equal(t, record.ID, f.emitted[0].TaskID)

	got, err := f.svc.GetTask(ctx, record.ID.String())
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, task.TaskStatusPending, got.Status)
}

func TestSubmit_NormalizesConfig(t *testing.T) {
	f := newFixture(t, nil)
	cfg := storetest.SampleConfig("  padded  ")

	record, err := f.svc.Submit(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "padded", record.Config.ProjectName)
}

func TestSubmit_MissingFields(t *testing.T) {
	f := newFixture(t, nil)
	cfg := storetest.SampleConfig("x")
	cfg.ProjectName = ""
	cfg.AuthorName = "   "

	_, err := f.svc.Submit(context.Background(), cfg)
	require.Error(t, err)

	var missing *domain.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"project_name", "author_name"}, missing.Fields)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Empty(t, f.emitted, "no task is scheduled")
	assert.Zero(t, f.store.Len())
}

func TestSubmit_SchedulingFailure(t *testing.T) {
	f := newFixture(t, fmt.Errorf("failed to submit task: %w", task.ErrQueueFull))

	_, err := f.svc.Submit(context.Background(), storetest.SampleConfig("full"))
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrQueueFull)

	var svcErr *GenerationServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "submit", svcErr.Operation)
}

func TestSubmit_NoHandlers(t *testing.T) {
	svc, err := NewGenerationService(task.NewMockTaskStore(), dirArchives(t.TempDir()),
		events.NewInMemoryEventEmitter(quietLogger()), quietLogger())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), storetest.SampleConfig("lonely"))
	assert.ErrorIs(t, err, events.ErrNoHandlers)
}

func TestSubmit_UniqueIdentifiers(t *testing.T) {
	f := newFixture(t, nil)
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 10; i++ {
		r, err := f.svc.Submit(context.Background(), storetest.SampleConfig(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
	}
}

func TestGetTask_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	for _, raw := range []string{uuid.NewString(), "not-a-uuid", ""} {
		_, err := f.svc.GetTask(context.Background(), raw)
		assert.ErrorIs(t, err, ErrTaskNotFound, raw)
	}
}

func TestGetTask_StoreFailure(t *testing.T) {
	store := &failingReader{err: errors.New("disk on fire")}
	svc, err := NewGenerationService(store, dirArchives(t.TempDir()),
		events.NewInMemoryEventEmitter(quietLogger()), quietLogger())
	require.NoError(t, err)

	_, err = svc.GetTask(context.Background(), uuid.NewString())
	var svcErr *GenerationServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "get_task", svcErr.Operation)
	assert.NotErrorIs(t, err, ErrTaskNotFound)
}

type failingReader struct{ err error }

func (r *failingReader) GetTask(context.Context, uuid.UUID) (task.Record, error) {
	return task.Record{}, r.err
}

func putRecord(t *testing.T, f *fixture, status task.TaskStatus) task.Record {
	t.Helper()
	r := task.NewRecord(storetest.SampleConfig("stored"))
	r.Status = status
	if status == task.TaskStatusCompleted {
		r.DownloadURL = task.DownloadURLFor(r.ID)
	}
	f.store.Put(r)
	return r
}

func TestOpenArchive_NotCompleted(t *testing.T) {
	f := newFixture(t, nil)

	for _, status := range []task.TaskStatus{task.TaskStatusPending, task.TaskStatusProcessing, task.TaskStatusFailed} {
		r := putRecord(t, f, status)

		archive, err := f.svc.OpenArchive(context.Background(), r.ID.String())
		assert.Nil(t, archive)
		assert.ErrorIs(t, err, ErrTaskNotCompleted)

		var notDone *TaskNotCompletedError
		require.ErrorAs(t, err, &notDone)
		assert.Equal(t, status, notDone.Status)
	}
}

func TestOpenArchive_UnknownTask(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.OpenArchive(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestOpenArchive_MissingFile(t *testing.T) {
	f := newFixture(t, nil)
	r := putRecord(t, f, task.TaskStatusCompleted)

	_, err := f.svc.OpenArchive(context.Background(), r.ID.String())
	assert.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestOpenArchive_Completed(t *testing.T) {
	f := newFixture(t, nil)
	r := putRecord(t, f, task.TaskStatusCompleted)
	content := []byte("PK fake archive bytes")
	require.NoError(t, os.WriteFile(f.archives.ArchivePath(r.ID), content, 0o644))

	archive, err := f.svc.OpenArchive(context.Background(), r.ID.String())
	require.NoError(t, err)
	defer func() { _ = archive.File.Close() }()

	assert.Equal(t, r.ID.String()+".zip", archive.Name)
	assert.Equal(t, int64(len(content)), archive.Size)

	got, err := io.ReadAll(archive.File)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestNewGenerationServiceError(t *testing.T) {
	assert.NoError(t, NewGenerationServiceError("op", "msg", nil))
	assert.Equal(t, ErrTaskNotFound, NewGenerationServiceError("op", "msg", fmt.Errorf("x: %w", ErrTaskNotFound)))
	assert.Equal(t, ErrArchiveNotFound, NewGenerationServiceError("op", "msg", ErrArchiveNotFound))

	cause := errors.New("boom")
	err := NewGenerationServiceError("submit", "failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "generation service submit failed: failed: boom", err.Error())
}

func TestTaskNotCompletedError(t *testing.T) {
	err := &TaskNotCompletedError{Status: task.TaskStatusProcessing}
	assert.Equal(t, "task not completed: status is processing", err.Error())
	assert.ErrorIs(t, err, ErrTaskNotCompleted)
}
