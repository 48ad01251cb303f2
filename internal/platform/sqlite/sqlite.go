package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/phrazzld/scaffold-api/internal/platform/migrations"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

// connPragmas are applied by the driver to every new connection.
var connPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// dsn returns the data source name for path with connPragmas attached.
func dsn(path string) string {
	q := url.Values{"_pragma": connPragmas}
	return path + "?" + q.Encode()
}

// OpenDB opens the database file at path, creating its directory if needed,
// with the connection pragmas set on every connection. The pool is limited to one connection
// so that every write is serialized by database/sql.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}
	return db, nil
}

// Open opens the database at path, migrates it and returns a store that owns
// the connection. Close releases it.
func Open(ctx context.Context, path string, logger *slog.Logger) (*TaskStore, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, db, migrations.DialectSQLite, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite task store ready", "component", "sqlite", "path", path)
	return NewTaskStore(db), nil
}
