package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Errors returned by the TaskRunner
var (
	ErrNilStore   = errors.New("task store cannot be nil")
	ErrNilFactory = errors.New("task factory cannot be nil")
	ErrNilLogger  = errors.New("logger cannot be nil")
)

// TaskRunnerConfig sizes the runner. Fields below 1 take the value from
// DefaultTaskRunnerConfig.
type TaskRunnerConfig struct {
	// WorkerCount is the number of generations that may run at once.
	WorkerCount int

	// QueueSize is the number of accepted tasks that may wait for a worker.
	QueueSize int
}

// DefaultTaskRunnerConfig returns the sizes used when none are configured.
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: DefaultWorkerPoolConfig().WorkerCount,
		QueueSize:   100,
	}
}

func (c TaskRunnerConfig) withDefaults() TaskRunnerConfig {
	def := DefaultTaskRunnerConfig()
	if c.WorkerCount < 1 {
		c.WorkerCount = def.WorkerCount
	}
	if c.QueueSize < 1 {
		c.QueueSize = def.QueueSize
	}
	return c
}

// TaskRunner accepts tasks, persists them, and hands them to a bounded
// worker pool. On Start it recovers records left unfinished by a previous run.
type TaskRunner struct {
	store   TaskStore
	factory TaskFactory
	queue   *TaskQueue
	pool    *WorkerPool
	logger  *slog.Logger

	stopOnce sync.Once
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(
	store TaskStore,
	factory TaskFactory,
	config TaskRunnerConfig,
	logger *slog.Logger,
) (*TaskRunner, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	config = config.withDefaults()
	log := logger.With("component", "task_runner")
	queue := NewTaskQueue(config.QueueSize, log)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, log)

	r := &TaskRunner{
		store:   store,
		factory: factory,
		queue:   queue,
		pool:    pool,
		logger:  log,
	}
	pool.SetErrorHandler(r.handleTaskError)
	return r, nil
}

// Submit persists the task's record and queues it. The call never waits for
// the task to run. If the queue cannot take the task the record is deleted
// again, so a rejected submission leaves nothing behind.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task.Record()); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		// Roll back even if the request context is already done.
		if delErr := r.store.DeleteTask(context.WithoutCancel(ctx), task.ID()); delErr != nil {
			r.logger.Error("failed to roll back rejected task",
				"task_id", task.ID(),
				"error", delErr)
		}
		r.logger.Warn("task rejected", "task_id", task.ID(), "error", err)
		return fmt.Errorf("failed to queue task: %w", err)
	}

	r.logger.Debug("task accepted", "task_id", task.ID(), "queue_len", r.QueueLength())
	return nil
}

// Start recovers unfinished tasks and starts the workers.
func (r *TaskRunner) Start(ctx context.Context) error {
	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}
	r.pool.Start()
	return nil
}

// Stop cancels running tasks, waits for the workers to exit, and closes the
// queue. Records of tasks that never started stay pending and are picked up
// by the next Start.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.pool.Stop()
		r.queue.Close()
	})
}

// Recover requeues pending records and fails records that were processing
// when the previous run stopped, removing whatever they left on disk.
func (r *TaskRunner) Recover(ctx context.Context) error {
	pending, err := r.store.GetTasksByStatus(ctx, TaskStatusPending)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processing, err := r.store.GetTasksByStatus(ctx, TaskStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, record := range processing {
		task, err := r.factory.CreateTask(record)
		if err != nil {
			r.logger.Error("failed to rebuild interrupted task", "task_id", record.ID, "error", err)
			continue
		}
		r.abandon(ctx, task, MessageRestarted)
	}

	for _, record := range pending {
		task, err := r.factory.CreateTask(record)
		if err != nil {
			r.logger.Error("failed to rebuild pending task", "task_id", record.ID, "error", err)
			continue
		}
		if err := r.queue.Enqueue(task); err != nil {
			r.logger.Error("failed to requeue pending task", "task_id", record.ID, "error", err)
			r.abandon(ctx, task, "Generation failed: task queue full during recovery")
		}
	}

	r.logger.Info("recovery finished", "queue_len", r.QueueLength())
	return nil
}

// QueueLength returns the number of tasks waiting for a worker.
func (r *TaskRunner) QueueLength() int {
	return r.queue.Len()
}

// handleTaskError is called by the pool after a task returns an error. A
// panicking task never recorded its own failure, so it is abandoned here.
func (r *TaskRunner) handleTaskError(task Task, err error) {
	if errors.Is(err, ErrTaskPanicked) {
		r.abandon(context.Background(), task, "Generation failed: internal error")
	}
}

func (r *TaskRunner) abandon(ctx context.Context, task Task, message string) {
	if a, ok := task.(Abandoner); ok {
		if err := a.Abandon(ctx, message); err != nil {
			r.logger.Error("failed to abandon task", "task_id", task.ID(), "error", err)
		}
		return
	}
	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, message, ""); err != nil {
		r.logger.Error("failed to mark task failed", "task_id", task.ID(), "error", err)
	}
}
