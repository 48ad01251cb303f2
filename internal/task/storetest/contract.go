// Package storetest holds the behavioural checks every task.TaskStore
// implementation must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/store"
	"github.com/phrazzld/scaffold-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) task.TaskStore

// SampleConfig returns a fully populated project configuration.
func SampleConfig(name string) domain.ProjectConfig {
	return domain.ProjectConfig{
		Framework:          "pytorch",
		TaskType:           "classification",
		ExperimentTracking: "mlflow",
		Orchestration:      "airflow",
		Deployment:         "docker",
		Monitoring:         "evidently",
		ProjectName:        name,
		AuthorName:         "Ada Lovelace",
		Description:        "A project called " + name,
		CloudProvider:      "aws",
		CloudService:       "sagemaker",
		Preset:             "starter",
		Template:           "default",
		Analytics:          true,
	}
}

// Run exercises the full TaskStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("save and get", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("duplicate id", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("lifecycle to completed", func(t *testing.T) { testCompleted(t, newStore(t)) })
	t.Run("lifecycle to failed", func(t *testing.T) { testFailed(t, newStore(t)) })
	t.Run("invalid transitions", func(t *testing.T) { testInvalidTransitions(t, newStore(t)) })
	t.Run("download url invariant", func(t *testing.T) { testDownloadInvariant(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("by status", func(t *testing.T) { testByStatus(t, newStore(t)) })
	t.Run("concurrent writers", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

func save(t *testing.T, s task.TaskStore, name string) task.Record {
	t.Helper()

	r := task.NewRecord(SampleConfig(name))
	require.NoError(t, s.SaveTask(context.Background(), r))
	return r
}

func get(t *testing.T, s task.TaskStore, id uuid.UUID) task.Record {
	t.Helper()

	r, err := s.GetTask(context.Background(), id)
	require.NoError(t, err)
	return r
}

func testSaveAndGet(t *testing.T, s task.TaskStore) {
	want := save(t, s, "alpha")
	got := get(t, s, want.ID)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, task.TaskStatusPending, got.Status)
	assert.Equal(t, want.Message, got.Message)
	assert.Empty(t, got.DownloadURL)
	assert.Equal(t, want.Config, got.Config)
	assert.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.WithinDuration(t, want.UpdatedAt, got.UpdatedAt, time.Millisecond)
}

func testDuplicate(t *testing.T, s task.TaskStore) {
	r := save(t, s, "dup")

	err := s.SaveTask(context.Background(), r)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func testNotFound(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	id := uuid.New()

	_, err := s.GetTask(ctx, id)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.ErrorIs(t, s.UpdateTaskStatus(ctx, id, task.TaskStatusProcessing, "x", ""), store.ErrTaskNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, id), store.ErrTaskNotFound)
}

func testCompleted(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	r := save(t, s, "done")

	require.NoError(t, s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusProcessing, task.MessageProcessing, ""))
	assert.Equal(t, task.TaskStatusProcessing, get(t, s, r.ID).Status)

	url := task.DownloadURLFor(r.ID)
	require.NoError(t, s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusCompleted, task.MessageCompleted, url))

	got := get(t, s, r.ID)
	assert.Equal(t, task.TaskStatusCompleted, got.Status)
	assert.Equal(t, task.MessageCompleted, got.Message)
	assert.Equal(t, url, got.DownloadURL)
	assert.Equal(t, r.Config, got.Config, "config is immutable")
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func testFailed(t *testing.T, s task.TaskStore) {
	ctx := context.Background()

	fromPending := save(t, s, "abandoned")
	require.NoError(t, s.UpdateTaskStatus(ctx, fromPending.ID, task.TaskStatusFailed, "gone", ""))
	assert.Equal(t, task.TaskStatusFailed, get(t, s, fromPending.ID).Status)

	fromProcessing := save(t, s, "broken")
	require.NoError(t, s.UpdateTaskStatus(ctx, fromProcessing.ID, task.TaskStatusProcessing, "", ""))
	require.NoError(t, s.UpdateTaskStatus(ctx, fromProcessing.ID, task.TaskStatusFailed, "Generation failed: x", ""))

	got := get(t, s, fromProcessing.ID)
	assert.Equal(t, task.TaskStatusFailed, got.Status)
	assert.Equal(t, "Generation failed: x", got.Message)
	assert.Empty(t, got.DownloadURL)
}

func testInvalidTransitions(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	r := save(t, s, "strict")

	err := s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusCompleted, "skip", task.DownloadURLFor(r.ID))
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusFailed, "failed", ""))
	for _, next := range []task.TaskStatus{task.TaskStatusPending, task.TaskStatusProcessing, task.TaskStatusFailed} {
		err := s.UpdateTaskStatus(ctx, r.ID, next, "again", "")
		assert.ErrorIs(t, err, store.ErrInvalidTransition, "failed -> %s", next)
	}

	got := get(t, s, r.ID)
	assert.Equal(t, task.TaskStatusFailed, got.Status)
	assert.Equal(t, "failed", got.Message, "rejected updates leave the record untouched")
}

func testDownloadInvariant(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	r := save(t, s, "urls")
	require.NoError(t, s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusProcessing, "", ""))

	err := s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusCompleted, "no url", "")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	err = s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusFailed, "with url", "/api/download/x")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	assert.Equal(t, task.TaskStatusProcessing, get(t, s, r.ID).Status)
}

func testDelete(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	r := save(t, s, "rollback")

	require.NoError(t, s.DeleteTask(ctx, r.ID))
	_, err := s.GetTask(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func testByStatus(t *testing.T, s task.TaskStore) {
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var pending []uuid.UUID
	for i := 0; i < 3; i++ {
		r := task.NewRecord(SampleConfig(fmt.Sprintf("p%d", i)))
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		r.UpdatedAt = r.CreatedAt
		require.NoError(t, s.SaveTask(ctx, r))
		pending = append(pending, r.ID)
	}
	processing := save(t, s, "running")
	require.NoError(t, s.UpdateTaskStatus(ctx, processing.ID, task.TaskStatusProcessing, "", ""))

	got, err := s.GetTasksByStatus(ctx, task.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, pending[i], r.ID, "oldest first")
	}

	got, err = s.GetTasksByStatus(ctx, task.TaskStatusProcessing)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, processing.ID, got[0].ID)

	got, err = s.GetTasksByStatus(ctx, task.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// testConcurrent checks that interleaved inserts and updates never lose writes.
func testConcurrent(t *testing.T, s task.TaskStore) {
	ctx := context.Background()
	const n = 20

	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			r := task.NewRecord(SampleConfig(fmt.Sprintf("c%d", i)))
			ids[i] = r.ID
			if !assert.NoError(t, s.SaveTask(ctx, r)) {
				return
			}
			assert.NoError(t, s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusProcessing, "", ""))
			assert.NoError(t, s.UpdateTaskStatus(ctx, r.ID, task.TaskStatusCompleted, "ok", task.DownloadURLFor(r.ID)))
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		r := get(t, s, id)
		assert.Equal(t, task.TaskStatusCompleted, r.Status)
	}
}
