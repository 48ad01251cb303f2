package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is an interface that abstracts the database access layer.
// It is implemented by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryStatus runs a single-column status query against q and returns the
// value, mapping a missing row to ErrTaskNotFound.
func QueryStatus(ctx context.Context, q DBTX, query string, args ...any) (string, error) {
	var status string
	err := q.QueryRowContext(ctx, query, args...).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTaskNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read task status: %w", err)
	}
	return status, nil
}
