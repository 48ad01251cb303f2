package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/redact"
	"github.com/phrazzld/scaffold-api/internal/store"
	"github.com/phrazzld/scaffold-api/internal/task"
)

// registry is the decoded form of the registry file.
type registry map[uuid.UUID]task.Record

// operation runs on the owner goroutine. It reports whether it changed the
// registry, which triggers a write.
type operation func(reg registry) (mutated bool, err error)

type request struct {
	op    operation
	reply chan error
}

// Store is a task.TaskStore backed by a JSON registry file.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	requests  chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the registry at path, creating its directory if needed, and
// starts the owner goroutine. Close must be called to stop it.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("registry path cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	s := &Store{
		path:     path,
		logger:   logger.With("component", "filestore"),
		now:      time.Now,
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	reg := s.load()
	go s.loop(reg)
	return s, nil
}

// Close stops the owner goroutine. Operations after Close return
// store.ErrStoreClosed. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
	})
	return nil
}

func (s *Store) loop(reg registry) {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		case req := <-s.requests:
			mutated, err := req.op(reg)
			if mutated {
				s.save(reg)
			}
			req.reply <- err
		}
	}
}

// do hands op to the owner goroutine and waits for its result. Once the
// owner has accepted op it always runs to completion, so the caller waits
// for the reply even if ctx is cancelled meanwhile.
func (s *Store) do(ctx context.Context, op operation) error {
	reply := make(chan error, 1)

	select {
	case s.requests <- request{op: op, reply: reply}:
	case <-s.quit:
		return store.ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-reply
}

// load reads the registry file. Any problem yields an empty registry.
func (s *Store) load() registry {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("task registry not found, starting empty", "path", s.path)
		return registry{}
	}
	if err != nil {
		s.logger.Warn("task registry unreadable, starting empty",
			"path", s.path,
			"error", redact.Error(err))
		return registry{}
	}

	var decoded map[string]task.Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		s.logger.Warn("task registry malformed, starting empty",
			"path", s.path,
			"error", err)
		return registry{}
	}

	reg := make(registry, len(decoded))
	for key, record := range decoded {
		id, err := uuid.Parse(key)
		if err != nil {
			s.logger.Warn("skipping registry entry with invalid id", "key", key)
			continue
		}
		record.ID = id
		reg[id] = record
	}

	s.logger.Info("task registry loaded", "path", s.path, "task_count", len(reg))
	return reg
}

// save writes the whole registry atomically. Failures are logged only.
func (s *Store) save(reg registry) {
	if err := s.writeFile(reg); err != nil {
		s.logger.Error("failed to save task registry",
			"path", s.path,
			"error", redact.Error(err))
	}
}

func (s *Store) writeFile(reg registry) (err error) {
	encoded := make(map[string]task.Record, len(reg))
	for id, record := range reg {
		encoded[id.String()] = record
	}

	data, err := json.MarshalIndent(encoded, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary registry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temporary registry: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temporary registry: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary registry: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

// SaveTask implements task.TaskStore.
func (s *Store) SaveTask(ctx context.Context, record task.Record) error {
	return s.do(ctx, func(reg registry) (bool, error) {
		if _, exists := reg[record.ID]; exists {
			return false, fmt.Errorf("%w: task %s", store.ErrDuplicate, record.ID)
		}
		reg[record.ID] = record
		return true, nil
	})
}

// GetTask implements task.TaskStore.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (task.Record, error) {
	var out task.Record
	err := s.do(ctx, func(reg registry) (bool, error) {
		record, exists := reg[id]
		if !exists {
			return false, store.ErrTaskNotFound
		}
		out = record
		return false, nil
	})
	return out, err
}

// UpdateTaskStatus implements task.TaskStore.
func (s *Store) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status task.TaskStatus,
	message, downloadURL string,
) error {
	return s.do(ctx, func(reg registry) (bool, error) {
		current, exists := reg[id]
		if !exists {
			return false, store.ErrTaskNotFound
		}
		if err := task.ValidateUpdate(current.Status, status, downloadURL); err != nil {
			return false, err
		}
		reg[id] = current.Apply(status, message, downloadURL, s.now())
		return true, nil
	})
}

// DeleteTask implements task.TaskStore.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.do(ctx, func(reg registry) (bool, error) {
		if _, exists := reg[id]; !exists {
			return false, store.ErrTaskNotFound
		}
		delete(reg, id)
		return true, nil
	})
}

// GetTasksByStatus implements task.TaskStore.
func (s *Store) GetTasksByStatus(ctx context.Context, status task.TaskStatus) ([]task.Record, error) {
	var out []task.Record
	err := s.do(ctx, func(reg registry) (bool, error) {
		for _, record := range reg {
			if record.Status == status {
				out = append(out, record)
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ensure Store implements task.TaskStore
var _ task.TaskStore = (*Store)(nil)
