package main

import (
	"context"
	"testing"

	"github.com/phrazzld/scaffold-api/internal/config"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/phrazzld/scaffold-api/internal/platform/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_SQLite(t *testing.T) {
	cfg := testConfig(t, config.StoreDriverSQLite)
	ctx := context.Background()

	require.NoError(t, runMigrations(ctx, cfg, migrations.CommandUp, logger.DiscardLogger()))
	require.NoError(t, runMigrations(ctx, cfg, migrations.CommandStatus, logger.DiscardLogger()))

	// the store opens cleanly on an already migrated database
	s, err := openTaskStore(ctx, cfg, logger.DiscardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, runMigrations(ctx, cfg, migrations.CommandReset, logger.DiscardLogger()))
}

func TestRunMigrations_FileStore(t *testing.T) {
	cfg := testConfig(t, config.StoreDriverFile)
	err := runMigrations(context.Background(), cfg, migrations.CommandUp, logger.DiscardLogger())
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestRunMigrations_UnknownCommand(t *testing.T) {
	cfg := testConfig(t, config.StoreDriverSQLite)
	err := runMigrations(context.Background(), cfg, "sideways", logger.DiscardLogger())
	assert.ErrorIs(t, err, migrations.ErrUnknownCommand)
}
