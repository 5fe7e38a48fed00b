package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-queue/internal/api/shared"
	"github.com/phrazzld/scry-queue/internal/platform/logger"
	"github.com/phrazzld/scry-queue/internal/task"
	"github.com/phrazzld/scry-queue/internal/throttle"
)

const (
	defaultIdleTimeout = 5 * time.Second
	maxIdleTimeout     = 60 * time.Second
)

// ClearResponse reports how many pending items a clear removed.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// IdleResponse is returned by the idle endpoint once the queue drains.
type IdleResponse struct {
	Idle  bool       `json:"idle"`
	Stats task.Stats `json:"stats"`
}

// ThrottleResponse lists the live throttling keys and their queues.
type ThrottleResponse struct {
	Count int                   `json:"count"`
	Keys  []string              `json:"keys"`
	Stats map[string]task.Stats `json:"stats"`
}

// QueueHandler exposes the shared queue and the keyed registry for
// inspection and control.
type QueueHandler struct {
	queue    *task.TaskQueue
	throttle *throttle.Registry
}

// NewQueueHandler creates a QueueHandler. throttle may be nil.
func NewQueueHandler(queue *task.TaskQueue, throttle *throttle.Registry) *QueueHandler {
	return &QueueHandler{
		queue:    queue,
		throttle: throttle,
	}
}

// Stats handles GET /api/queue.
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}

// Pause handles POST /api/queue/pause.
func (h *QueueHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.queue.Pause()
	logger.FromContext(r.Context()).Info("queue paused via API")
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}

// Resume handles POST /api/queue/resume.
func (h *QueueHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.queue.Resume()
	logger.FromContext(r.Context()).Info("queue resumed via API")
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.Stats())
}

// Clear handles POST /api/queue/clear.
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n := h.queue.Clear()
	logger.FromContext(r.Context()).Info("queue cleared via API", slog.Int("cleared", n))
	shared.RespondWithJSON(w, r, http.StatusOK, ClearResponse{Cleared: n})
}

// Idle handles GET /api/queue/idle?timeout=<duration>. It responds once the
// queue has nothing pending and nothing running, or with 504 when the
// timeout passes first.
func (h *QueueHandler) Idle(w http.ResponseWriter, r *http.Request) {
	timeout := defaultIdleTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid timeout")
			return
		}
		timeout = min(d, maxIdleTimeout)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	if err := h.queue.AwaitIdle(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			shared.RespondWithError(w, r, http.StatusGatewayTimeout, "Queue did not become idle")
			return
		}
		// client went away
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, IdleResponse{Idle: true, Stats: h.queue.Stats()})
}

// ThrottleStats handles GET /api/throttle.
func (h *QueueHandler) ThrottleStats(w http.ResponseWriter, r *http.Request) {
	resp := ThrottleResponse{
		Keys:  []string{},
		Stats: map[string]task.Stats{},
	}
	if h.throttle != nil {
		resp.Keys = h.throttle.Keys()
		resp.Stats = h.throttle.Stats()
	}
	resp.Count = len(resp.Keys)
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ThrottleClear handles POST /api/throttle/clear.
func (h *QueueHandler) ThrottleClear(w http.ResponseWriter, r *http.Request) {
	n := 0
	if h.throttle != nil {
		n = h.throttle.ClearAll()
	}
	logger.FromContext(r.Context()).Info("throttled queues cleared via API", slog.Int("cleared", n))
	shared.RespondWithJSON(w, r, http.StatusOK, ClearResponse{Cleared: n})
}
