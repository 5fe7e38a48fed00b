package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/scry-queue/internal/api"
	apiMiddleware "github.com/phrazzld/scry-queue/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	queueHandler := api.NewQueueHandler(app.queue, app.throttle)
	taskHandler := api.NewTaskHandler(app.operations, app.eventEmitter)

	r.Route("/api", func(r chi.Router) {
		if app.config.Auth.JWTSecret != "" {
			r.Use(apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret).Authenticate)
		}

		// Queue control
		r.Get("/queue", queueHandler.Stats)
		r.Post("/queue/pause", queueHandler.Pause)
		r.Post("/queue/resume", queueHandler.Resume)
		r.Post("/queue/clear", queueHandler.Clear)
		r.Get("/queue/idle", queueHandler.Idle)

		// Per-key queues
		r.Get("/throttle", queueHandler.ThrottleStats)
		r.Post("/throttle/clear", queueHandler.ThrottleClear)

		// Task submission
		r.Post("/tasks", taskHandler.SubmitTask)
		r.Get("/tasks/types", taskHandler.ListTypes)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
