package task

import (
	"fmt"
)

// GenerationTaskFactory creates GenerationTask instances
type GenerationTaskFactory struct {
	deps GenerationDeps
}

// NewGenerationTaskFactory creates a new factory for GenerationTasks
func NewGenerationTaskFactory(deps GenerationDeps) (*GenerationTaskFactory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	deps.Logger = deps.Logger.With("component", "generation_task")
	return &GenerationTaskFactory{deps: deps}, nil
}

// CreateTask creates a GenerationTask for the record
func (f *GenerationTaskFactory) CreateTask(record Record) (Task, error) {
	t, err := NewGenerationTask(record, f.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation task: %w", err)
	}
	return t, nil
}

// Ensure GenerationTaskFactory implements TaskFactory
var _ TaskFactory = (*GenerationTaskFactory)(nil)
