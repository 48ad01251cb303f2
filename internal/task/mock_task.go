package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/domain"
)

// MockTask is a simple implementation of the Task and Abandoner interfaces for testing
type MockTask struct {
	mu sync.Mutex

	TaskRecord Record
	TaskType   string
	ExecuteFn  func(ctx context.Context) error
	AbandonFn  func(ctx context.Context, message string) error

	executed  int
	abandoned []string
}

// NewMockTask creates a MockTask around a fresh pending record
func NewMockTask() *MockTask {
	return NewMockTaskFromRecord(NewRecord(domain.ProjectConfig{ProjectName: "mock"}))
}

// NewMockTaskFromRecord creates a MockTask for an existing record
func NewMockTaskFromRecord(record Record) *MockTask {
	return &MockTask{
		TaskRecord: record,
		TaskType:   "mock_task",
		ExecuteFn:  func(ctx context.Context) error { return nil },
		AbandonFn:  func(ctx context.Context, message string) error { return nil },
	}
}

// ID returns the task's unique identifier
func (t *MockTask) ID() uuid.UUID {
	return t.TaskRecord.ID
}

// Type returns the task type identifier
func (t *MockTask) Type() string {
	return t.TaskType
}

// Record returns the record the task was created from
func (t *MockTask) Record() Record {
	return t.TaskRecord
}

// Execute runs ExecuteFn
func (t *MockTask) Execute(ctx context.Context) error {
	t.mu.Lock()
	t.executed++
	t.mu.Unlock()
	return t.ExecuteFn(ctx)
}

// Abandon runs AbandonFn
func (t *MockTask) Abandon(ctx context.Context, message string) error {
	t.mu.Lock()
	t.abandoned = append(t.abandoned, message)
	t.mu.Unlock()
	return t.AbandonFn(ctx, message)
}

// ExecuteCount returns how many times Execute was called
func (t *MockTask) ExecuteCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executed
}

// AbandonMessages returns the messages passed to Abandon
func (t *MockTask) AbandonMessages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.abandoned...)
}

// MockTaskFactory builds MockTasks from records and remembers them by id
type MockTaskFactory struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]*MockTask
	CreateFn func(record Record) (Task, error)
}

// NewMockTaskFactory creates a factory that returns MockTasks
func NewMockTaskFactory() *MockTaskFactory {
	return &MockTaskFactory{tasks: make(map[uuid.UUID]*MockTask)}
}

// CreateTask implements TaskFactory
func (f *MockTaskFactory) CreateTask(record Record) (Task, error) {
	if f.CreateFn != nil {
		return f.CreateFn(record)
	}
	t := NewMockTaskFromRecord(record)
	f.mu.Lock()
	f.tasks[record.ID] = t
	f.mu.Unlock()
	return t, nil
}

// Created returns the MockTask built for id, if any
func (f *MockTaskFactory) Created(id uuid.UUID) (*MockTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}
