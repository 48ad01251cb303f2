package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scaffold-api/internal/platform/migrations"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB connects to databaseURL through the pgx driver and verifies the
// connection.
func OpenDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL cannot be empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Open connects, migrates and returns a store that owns the connection.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*TaskStore, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	db, err := OpenDB(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, db, migrations.DialectPostgres, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("database connection established", "component", "postgres")
	return NewTaskStore(db), nil
}
