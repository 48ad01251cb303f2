package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-api/internal/config"
	"github.com/phrazzld/scaffold-api/internal/platform/migrations"
	"github.com/phrazzld/scaffold-api/internal/platform/postgres"
	"github.com/phrazzld/scaffold-api/internal/platform/sqlite"
)

// ErrNoSchema is returned when migrations are requested for the file store.
var ErrNoSchema = errors.New("the file store has no schema to migrate")

// runMigrations executes one goose command against the configured SQL store.
func runMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	log := logger.With("correlation_id", uuid.NewString())

	var (
		db      *sql.DB
		dialect migrations.Dialect
		err     error
	)
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		dialect = migrations.DialectSQLite
		db, err = sqlite.OpenDB(ctx, cfg.Store.SQLitePath)
	case config.StoreDriverPostgres:
		dialect = migrations.DialectPostgres
		db, err = postgres.OpenDB(ctx, cfg.Store.DatabaseURL)
	default:
		return fmt.Errorf("%w (store.driver=%s)", ErrNoSchema, cfg.Store.Driver)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("failed to close database", "error", cerr)
		}
	}()

	return migrations.Run(ctx, db, dialect, command, log)
}
