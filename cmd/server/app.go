package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/snaptrace/snaptrace-api/internal/api"
	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/snaptrace/snaptrace-api/internal/events"
	"github.com/snaptrace/snaptrace-api/internal/metrics"
	"github.com/snaptrace/snaptrace-api/internal/redact"
	"github.com/snaptrace/snaptrace-api/internal/store"
	"github.com/snaptrace/snaptrace-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	metrics *metrics.Registry
	emitter *events.InMemoryEventEmitter
	counter *events.StatusCounter

	store  *store.Store
	pool   *task.WorkerPool
	router http.Handler
}

// newApplication creates a new application instance with all dependencies
// initialized. The worker pool is started here when worker.autostart is set.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewRegistry(),
		counter: events.NewStatusCounter(),
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(events.NewLogHandler(logger))
	app.emitter.RegisterHandler(app.counter)

	pair, err := buildGenerators(ctx, cfg, app.metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build generators: %w", err)
	}

	app.store = store.New(pair, app.emitter, logger)

	app.pool = task.NewWorkerPool(app.store, app.emitter, task.WorkerPoolConfig{
		WorkerCount: cfg.Worker.Count,
	}, logger)
	app.pool.SetErrorHandler(func(jobID string, err error) {
		logger.Warn("generation job failed",
			"job_id", jobID,
			"error", redact.Error(err))
	})

	if cfg.Worker.AutoStart {
		if err := app.pool.Start(); err != nil {
			return nil, fmt.Errorf("failed to start worker pool: %w", err)
		}
	} else {
		logger.Info("worker autostart disabled, jobs will stay queued")
	}

	app.router = api.NewRouter(api.RouterDeps{
		Jobs:           app.store,
		Feed:           app.store,
		Pool:           app.pool,
		Events:         app.counter,
		Metrics:        app.metrics,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	})

	logger.Info("application initialized successfully")
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts the server and the
// worker pool down.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the worker pool. Jobs still in flight are requeued.
func (app *application) cleanup(ctx context.Context) error {
	if app.pool == nil {
		return nil
	}
	if err := app.pool.Stop(ctx); err != nil {
		app.logger.Error("worker pool did not stop in time", "error", err)
		return err
	}
	app.logger.Info("application shutdown completed",
		"queued_jobs", app.store.QueueDepth())
	return nil
}
