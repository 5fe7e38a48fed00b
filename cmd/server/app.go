package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/phrazzld/scry-queue/internal/config"
	"github.com/phrazzld/scry-queue/internal/events"
	"github.com/phrazzld/scry-queue/internal/operation"
	"github.com/phrazzld/scry-queue/internal/retry"
	"github.com/phrazzld/scry-queue/internal/task"
	"github.com/phrazzld/scry-queue/internal/throttle"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Queues
	queue    *task.TaskQueue
	throttle *throttle.Registry

	// Operation building
	operations *operation.Registry
	builder    task.OperationBuilder

	// Event system
	eventEmitter *events.InMemoryEventEmitter
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &application{
		config: cfg,
		logger: logger,
	}

	app.queue = task.NewTaskQueue(task.TaskQueueConfig{
		Concurrency: cfg.Queue.Concurrency,
		StartPaused: cfg.Queue.StartPaused,
	}, logger)
	app.queue.SetErrorHandler(func(id uuid.UUID, err error) {
		logger.Warn("queued operation failed", "task_id", id, "error", err)
	})

	app.throttle = throttle.NewRegistry(throttle.Config{
		Concurrency:   cfg.Throttle.Concurrency,
		RatePerSecond: cfg.Throttle.RatePerSecond,
		Burst:         cfg.Throttle.Burst,
		KeyTTL:        cfg.Throttle.KeyTTL,
		SweepInterval: cfg.Throttle.SweepInterval,
	}, logger)

	app.operations = operation.NewDefaultRegistry(cleanhttp.DefaultPooledClient())
	app.builder = app.operations
	if cfg.Retry.MaxRetries > 0 {
		app.builder = retry.NewBuilder(app.operations, retry.Config{
			MaxRetries:    cfg.Retry.MaxRetries,
			InitialDelay:  cfg.Retry.InitialDelay,
			MaxDelay:      cfg.Retry.MaxDelay,
			JitterPercent: retry.DefaultConfig().JitterPercent,
		})
		logger.Info("operation retries enabled",
			"max_retries", cfg.Retry.MaxRetries,
			"initial_delay", cfg.Retry.InitialDelay)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(
		task.NewRequestHandler(app.builder, app.queue, app.throttle, logger),
	)

	logger.Info("Application initialized successfully",
		"operation_types", app.operations.Types(),
		"start_paused", cfg.Queue.StartPaused)
	return app, nil
}

// drain stops new work from starting, discards what is still pending and
// waits for running operations to finish, bounded by ctx.
func (app *application) drain(ctx context.Context) error {
	app.queue.Pause()
	app.throttle.PauseAll()

	cleared := app.queue.Clear() + app.throttle.ClearAll()
	app.logger.Info("draining task queues",
		"cleared", cleared,
		"running", app.queue.RunningCount())

	if err := app.queue.AwaitIdle(ctx); err != nil {
		return fmt.Errorf("task queue did not drain: %w", err)
	}
	if err := app.throttle.AwaitIdle(ctx); err != nil {
		return fmt.Errorf("throttled queues did not drain: %w", err)
	}

	app.logger.Info("Application shutdown completed")
	return nil
}
