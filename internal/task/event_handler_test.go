package task

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/events"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// submitterFunc adapts a function to TaskSubmitter
type submitterFunc func(ctx context.Context, task Task) error

func (f submitterFunc) Submit(ctx context.Context, task Task) error { return f(ctx, task) }

func newGenerationEvent(t *testing.T, record Record) *events.TaskRequestEvent {
	t.Helper()

	event, err := events.NewTaskRequestEvent(TaskTypeProjectGeneration, record.ID, record)
	require.NoError(t, err)
	return event
}

func TestTaskFactoryEventHandler_HandleEvent(t *testing.T) {
	t.Parallel()

	record := NewRecord(domain.ProjectConfig{ProjectName: "demo", Analytics: true})

	t.Run("submits the rebuilt task", func(t *testing.T) {
		t.Parallel()

		factory := NewMockTaskFactory()
		var submitted Task
		runner := submitterFunc(func(ctx context.Context, task Task) error {
			submitted = task
			return nil
		})

		handler := NewTaskFactoryEventHandler(factory, runner, logger.DiscardLogger())
		require.NoError(t, handler.HandleEvent(context.Background(), newGenerationEvent(t, record)))

		require.NotNil(t, submitted)
		assert.Equal(t, record.ID, submitted.ID())
		assert.Equal(t, record.Config, submitted.Record().Config)
		assert.True(t, submitted.Record().CreatedAt.Equal(record.CreatedAt))
	})

	t.Run("ignores unsupported event type", func(t *testing.T) {
		t.Parallel()

		factory := NewMockTaskFactory()
		factory.CreateFn = func(Record) (Task, error) {
			t.Error("factory should not be called")
			return nil, nil
		}
		runner := submitterFunc(func(ctx context.Context, task Task) error {
			t.Error("runner should not be called")
			return nil
		})

		event, err := events.NewTaskRequestEvent("unsupported_type", record.ID, map[string]string{"key": "value"})
		require.NoError(t, err)

		handler := NewTaskFactoryEventHandler(factory, runner, logger.DiscardLogger())
		assert.NoError(t, handler.HandleEvent(context.Background(), event))
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		t.Parallel()

		event, err := events.NewTaskRequestEvent(TaskTypeProjectGeneration, record.ID, "not a record")
		require.NoError(t, err)

		handler := NewTaskFactoryEventHandler(NewMockTaskFactory(), submitterFunc(
			func(ctx context.Context, task Task) error { return nil }), logger.DiscardLogger())

		err = handler.HandleEvent(context.Background(), event)
		assert.ErrorContains(t, err, "failed to unmarshal payload")
	})

	t.Run("task creation failure", func(t *testing.T) {
		t.Parallel()

		factory := NewMockTaskFactory()
		factory.CreateFn = func(Record) (Task, error) { return nil, errors.New("task creation failed") }

		handler := NewTaskFactoryEventHandler(factory, submitterFunc(
			func(ctx context.Context, task Task) error { return nil }), logger.DiscardLogger())

		err := handler.HandleEvent(context.Background(), newGenerationEvent(t, record))
		assert.ErrorContains(t, err, "failed to create task")
	})

	t.Run("submission failure keeps the cause", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskFactoryEventHandler(NewMockTaskFactory(), submitterFunc(
			func(ctx context.Context, task Task) error { return ErrQueueFull }), logger.DiscardLogger())

		err := handler.HandleEvent(context.Background(), newGenerationEvent(t, record))
		assert.ErrorIs(t, err, ErrQueueFull)
		assert.ErrorContains(t, err, "failed to submit task")
	})

	t.Run("rejects payload for another task", func(t *testing.T) {
		t.Parallel()

		factory := NewMockTaskFactory()
		factory.CreateFn = func(Record) (Task, error) {
			t.Error("factory should not be called")
			return nil, nil
		}
		other := NewRecord(record.Config)
		event, err := events.NewTaskRequestEvent(TaskTypeProjectGeneration, record.ID, other)
		require.NoError(t, err)

		handler := NewTaskFactoryEventHandler(factory, submitterFunc(
			func(ctx context.Context, task Task) error { return nil }), logger.DiscardLogger())

		assert.ErrorIs(t, handler.HandleEvent(context.Background(), event), ErrTaskIDMismatch)
	})
}
