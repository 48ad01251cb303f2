package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/phrazzld/scaffold-api/internal/store"
	"github.com/phrazzld/scaffold-api/internal/task"
)

const selectColumns = `SELECT id, status, message, download_url, config, created_at, updated_at FROM tasks`

// TaskStore implements task.TaskStore using PostgreSQL
type TaskStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTaskStore creates a TaskStore on an already migrated database.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db, now: time.Now}
}

// DB returns the underlying connection pool.
func (s *TaskStore) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

// SaveTask persists a new record
func (s *TaskStore) SaveTask(ctx context.Context, record task.Record) error {
	log := logger.FromContext(ctx)

	cfg, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("failed to encode task config: %w", err)
	}

	query := `
		INSERT INTO tasks (id, status, message, download_url, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		string(record.Status),
		record.Message,
		nullable(record.DownloadURL),
		string(cfg),
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: task %s", store.ErrDuplicate, record.ID)
		}
		log.Error("failed to save task",
			"task_id", record.ID,
			"error", err)
		return fmt.Errorf("failed to save task to database: %w", MapError(err))
	}
	return nil
}

// GetTask returns the record for id
func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (task.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Record{}, store.ErrTaskNotFound
	}
	if err != nil {
		return task.Record{}, fmt.Errorf("failed to get task: %w", MapError(err))
	}
	return r, nil
}

// UpdateTaskStatus locks the row, validates the transition and applies it.
func (s *TaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status task.TaskStatus,
	message, downloadURL string,
) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := store.QueryStatus(ctx, tx, `SELECT status FROM tasks WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}

		if err := task.ValidateUpdate(task.TaskStatus(current), status, downloadURL); err != nil {
			return err
		}

		query := `
			UPDATE tasks
			SET status = $1, message = $2, download_url = $3, updated_at = $4
			WHERE id = $5
		`
		result, err := tx.ExecContext(ctx, query,
			string(status),
			message,
			nullable(downloadURL),
			s.now().UTC(),
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to update task status: %w", MapError(err))
		}
		return CheckRowsAffected(result, store.ErrTaskNotFound)
	})
}

// DeleteTask removes a record
func (s *TaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// GetTasksByStatus retrieves every record in status, oldest first
func (s *TaskStore) GetTasksByStatus(ctx context.Context, status task.TaskStatus) ([]task.Record, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status = $1 ORDER BY created_at ASC, id ASC`, string(status))
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []task.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (task.Record, error) {
	var (
		r           task.Record
		status      string
		downloadURL sql.NullString
		cfg         []byte
	)
	if err := row.Scan(&r.ID, &status, &r.Message, &downloadURL, &cfg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return task.Record{}, err
	}
	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return task.Record{}, fmt.Errorf("invalid task config: %w", err)
	}
	r.Status = task.TaskStatus(status)
	r.DownloadURL = downloadURL.String
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
