package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/store"
)

// MockTaskStore implements the TaskStore interface for testing.
// The exported hooks default to an in-memory implementation that enforces
// the same rules as the real stores; tests override them to inject failures.
type MockTaskStore struct {
	mutex   sync.RWMutex
	records map[uuid.UUID]Record

	SaveFn         func(ctx context.Context, record Record) error
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status TaskStatus, message, downloadURL string) error
	DeleteFn       func(ctx context.Context, id uuid.UUID) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	s := &MockTaskStore{records: make(map[uuid.UUID]Record)}
	s.SaveFn = s.save
	s.UpdateStatusFn = s.update
	s.DeleteFn = s.delete
	return s
}

func (s *MockTaskStore) save(_ context.Context, record Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return store.ErrDuplicate
	}
	s.records[record.ID] = record
	return nil
}

func (s *MockTaskStore) update(
	_ context.Context,
	id uuid.UUID,
	status TaskStatus,
	message, downloadURL string,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, exists := s.records[id]
	if !exists {
		return store.ErrTaskNotFound
	}
	if err := ValidateUpdate(current.Status, status, downloadURL); err != nil {
		return err
	}
	s.records[id] = current.Apply(status, message, downloadURL, time.Now())
	return nil
}

func (s *MockTaskStore) delete(_ context.Context, id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.records[id]; !exists {
		return store.ErrTaskNotFound
	}
	delete(s.records, id)
	return nil
}

// SaveTask persists a record to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, record Record) error {
	return s.SaveFn(ctx, record)
}

// GetTask returns a stored record
func (s *MockTaskStore) GetTask(_ context.Context, id uuid.UUID) (Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return Record{}, store.ErrTaskNotFound
	}
	return record, nil
}

// UpdateTaskStatus updates the status of a record in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status TaskStatus,
	message, downloadURL string,
) error {
	return s.UpdateStatusFn(ctx, id, status, message, downloadURL)
}

// DeleteTask removes a record from the mock store
func (s *MockTaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.DeleteFn(ctx, id)
}

// GetTasksByStatus retrieves all records with the given status, oldest first
func (s *MockTaskStore) GetTasksByStatus(_ context.Context, status TaskStatus) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Put stores a record as-is, bypassing state checks, to set up fixtures
func (s *MockTaskStore) Put(record Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[record.ID] = record
}

// Len returns the number of stored records
func (s *MockTaskStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records)
}
