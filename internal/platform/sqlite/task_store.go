package sqlite

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
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, status, message, download_url, config, created_at, updated_at FROM tasks`

// TaskStore implements task.TaskStore on a SQLite database.
type TaskStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTaskStore wraps an already migrated database.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db, now: time.Now}
}

// DB returns the underlying connection pool.
func (s *TaskStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

// SaveTask inserts a new record.
func (s *TaskStore) SaveTask(ctx context.Context, record task.Record) error {
	log := logger.FromContext(ctx)

	cfg, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("failed to encode task config: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, status, message, download_url, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(),
		string(record.Status),
		record.Message,
		nullable(record.DownloadURL),
		string(cfg),
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return fmt.Errorf("%w: task %s", store.ErrDuplicate, record.ID)
		}
		log.Error("failed to save task", "task_id", record.ID, "error", err)
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// GetTask returns the record for id.
func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (task.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Record{}, store.ErrTaskNotFound
	}
	if err != nil {
		return task.Record{}, fmt.Errorf("failed to get task: %w", err)
	}
	return r, nil
}

// UpdateTaskStatus validates and applies a transition inside one transaction.
func (s *TaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status task.TaskStatus,
	message, downloadURL string,
) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := store.QueryStatus(ctx, tx, `SELECT status FROM tasks WHERE id = ?`, id.String())
		if err != nil {
			return err
		}

		if err := task.ValidateUpdate(task.TaskStatus(current), status, downloadURL); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, message = ?, download_url = ?, updated_at = ? WHERE id = ?`,
			string(status),
			message,
			nullable(downloadURL),
			formatTime(s.now()),
			id.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update task status: %w", err)
		}
		return nil
	})
}

// DeleteTask removes a record.
func (s *TaskStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// GetTasksByStatus returns every record in status, oldest first.
func (s *TaskStore) GetTasksByStatus(ctx context.Context, status task.TaskStatus) ([]task.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status = ? ORDER BY created_at ASC, id ASC`, string(status))
	if err != nil {
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
		id, status, message, cfg, createdAt, updatedAt string
		downloadURL                                    sql.NullString
	)
	if err := row.Scan(&id, &status, &message, &downloadURL, &cfg, &createdAt, &updatedAt); err != nil {
		return task.Record{}, err
	}

	r := task.Record{
		Status:      task.TaskStatus(status),
		Message:     message,
		DownloadURL: downloadURL.String,
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return task.Record{}, fmt.Errorf("invalid task id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
		return task.Record{}, fmt.Errorf("invalid task config: %w", err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return task.Record{}, fmt.Errorf("invalid created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return task.Record{}, fmt.Errorf("invalid updated_at: %w", err)
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
