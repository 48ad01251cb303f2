package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projectPayload struct {
	Name   string `json:"name"`
	Author string `json:"author"`
}

func TestNewTaskRequestEvent(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	payload := projectPayload{Name: "churn-model", Author: "Ada"}

	event, err := NewTaskRequestEvent("project_generation", taskID, payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.NotEqual(t, taskID, event.ID, "event id is distinct from the task id")
	assert.Equal(t, taskID, event.TaskID)
	assert.Equal(t, "project_generation", event.Type)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded projectPayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewTaskRequestEvent_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewTaskRequestEvent("", uuid.New(), nil)
	assert.ErrorIs(t, err, ErrEmptyEventType)

	_, err = NewTaskRequestEvent("project_generation", uuid.Nil, nil)
	assert.ErrorIs(t, err, ErrNilTaskID)

	_, err = NewTaskRequestEvent("project_generation", uuid.New(), map[string]any{"bad": make(chan int)})
	var unsupported *json.UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)
}

func TestTaskRequestEvent_JSON(t *testing.T) {
	t.Parallel()

	event, err := NewTaskRequestEvent("project_generation", uuid.New(), projectPayload{Name: "x"})
	require.NoError(t, err)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"task_id":"`+event.TaskID.String()+`"`)
	assert.Contains(t, string(raw), `"payload":{"name":"x","author":""}`)
}

// recordingHandler remembers what it was given and fails with err.
type recordingHandler struct {
	events []*TaskRequestEvent
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *TaskRequestEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestEventHandlerFunc(t *testing.T) {
	t.Parallel()

	var got *TaskRequestEvent
	h := EventHandlerFunc(func(ctx context.Context, event *TaskRequestEvent) error {
		got = event
		return nil
	})

	event, err := NewTaskRequestEvent("project_generation", uuid.New(), nil)
	require.NoError(t, err)

	require.NoError(t, h.HandleEvent(context.Background(), event))
	assert.Same(t, event, got)
}
