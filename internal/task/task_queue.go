package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrQueueFull is returned when every slot is taken. Submissions are
	// never blocked waiting for a worker.
	ErrQueueFull = errors.New("task queue is full")
)

// TaskQueue is a bounded FIFO of tasks waiting for a worker. It satisfies
// TaskQueueReader.
type TaskQueue struct {
	// mu is held for reading while sending, so Close never closes the
	// channel under a sender.
	mu     sync.RWMutex
	closed bool
	tasks  chan Task
	logger *slog.Logger
}

// NewTaskQueue returns a queue holding at most size tasks. Sizes below 1
// mean 1.
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		tasks:  make(chan Task, max(size, 1)),
		logger: logger,
	}
}

// Enqueue adds task without blocking.
func (q *TaskQueue) Enqueue(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
	default:
		return fmt.Errorf("%w: %d tasks waiting", ErrQueueFull, cap(q.tasks))
	}

	q.logger.Debug("task enqueued",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"queue_len", len(q.tasks),
		"queue_cap", cap(q.tasks))
	return nil
}

// Close rejects further tasks. Buffered tasks remain readable. Close is
// idempotent.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
	q.logger.Info("task queue closed", "abandoned_in_queue", len(q.tasks))
}

// Len returns the number of tasks waiting.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// GetChannel returns the channel workers receive from.
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.tasks
}
