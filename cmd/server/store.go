package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scaffold-api/internal/config"
	"github.com/phrazzld/scaffold-api/internal/platform/filestore"
	"github.com/phrazzld/scaffold-api/internal/platform/postgres"
	"github.com/phrazzld/scaffold-api/internal/platform/sqlite"
	"github.com/phrazzld/scaffold-api/internal/task"
)

// closableStore is a task store that owns a resource released on shutdown.
type closableStore interface {
	task.TaskStore
	Close() error
}

// openTaskStore builds the task store selected by cfg.Store.Driver. SQL
// stores are migrated before use.
func openTaskStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closableStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverFile:
		s, err := filestore.Open(cfg.Store.RegistryPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open task registry: %w", err)
		}
		return s, nil

	case config.StoreDriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite task store: %w", err)
		}
		return s, nil

	case config.StoreDriverPostgres:
		s, err := postgres.Open(ctx, cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres task store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}
