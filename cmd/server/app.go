package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scaffold-api/internal/archive"
	"github.com/phrazzld/scaffold-api/internal/config"
	"github.com/phrazzld/scaffold-api/internal/domain"
	"github.com/phrazzld/scaffold-api/internal/events"
	"github.com/phrazzld/scaffold-api/internal/generation"
	"github.com/phrazzld/scaffold-api/internal/platform/scaffolder"
	"github.com/phrazzld/scaffold-api/internal/service"
	"github.com/phrazzld/scaffold-api/internal/task"
	"github.com/phrazzld/scaffold-api/internal/workspace"
)

// application holds the shared dependencies of the server and releases them
// on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	taskStore  closableStore
	workspaces *workspace.Manager
	taskRunner *task.TaskRunner
	emitter    *events.InMemoryEventEmitter
	service    service.GenerationService
	catalog    domain.OptionCatalog
}

// dependencies lets tests replace the generator.
type dependencies struct {
	generator generation.Generator
}

// newApplication wires every component and starts the task runner, which
// recovers tasks left unfinished by a previous run.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	gen, err := scaffolder.NewGenerator(logger, cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize project generator: %w", err)
	}
	return newApplicationWith(ctx, cfg, logger, dependencies{generator: gen})
}

func newApplicationWith(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	deps dependencies,
) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		catalog: domain.DefaultCatalog(),
	}

	var err error
	app.workspaces, err = workspace.NewManager(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	app.taskStore, err = openTaskStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	factory, err := task.NewGenerationTaskFactory(task.GenerationDeps{
		Store:      app.taskStore,
		Generator:  deps.generator,
		Archiver:   archive.NewZipArchiver(),
		Workspaces: app.workspaces,
		Logger:     logger,
	})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}

	app.taskRunner, err = task.NewTaskRunner(app.taskStore, factory, task.TaskRunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task runner: %w", err)
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, app.taskRunner, logger))

	app.service, err = service.NewGenerationService(app.taskStore, app.workspaces, app.emitter, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}

	if err := app.taskRunner.Start(ctx); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("application initialized",
		"data_dir", app.workspaces.Root(),
		"store_driver", cfg.Store.Driver)
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the runner, cancelling in-flight generations, and then
// closes the store they report to.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.taskStore != nil {
		if err := app.taskStore.Close(); err != nil {
			app.logger.Error("error closing task store", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
