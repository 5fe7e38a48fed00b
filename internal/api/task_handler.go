package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-queue/internal/api/shared"
	"github.com/phrazzld/scry-queue/internal/events"
	"github.com/phrazzld/scry-queue/internal/platform/logger"
	"github.com/phrazzld/scry-queue/internal/task"
)

// SubmitTaskRequest is the body of POST /api/tasks.
type SubmitTaskRequest struct {
	Type    string          `json:"type"    validate:"required,max=64"`
	Key     string          `json:"key"     validate:"max=128"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitTaskResponse acknowledges an accepted task request.
type SubmitTaskResponse struct {
	EventID uuid.UUID `json:"event_id"`
	Type    string    `json:"type"`
	Key     string    `json:"key,omitempty"`
}

// TaskTypesResponse lists the operation types the server can build.
type TaskTypesResponse struct {
	Types []string `json:"types"`
}

// OperationCatalog reports which operation types can be built.
type OperationCatalog interface {
	Types() []string
}

// TaskHandler accepts task requests over HTTP and emits them as events.
type TaskHandler struct {
	catalog OperationCatalog
	emitter events.EventEmitter
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(catalog OperationCatalog, emitter events.EventEmitter) *TaskHandler {
	return &TaskHandler{
		catalog: catalog,
		emitter: emitter,
	}
}

// SubmitTask handles POST /api/tasks. The work runs asynchronously, so a
// successful request returns 202 with the event ID.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		if errors.Is(err, shared.ErrEmptyBody) {
			HandleAPIError(w, r, err, "")
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	if !h.knows(req.Type) {
		HandleAPIError(w, r, fmt.Errorf("%w: %q", task.ErrUnknownOperationType, req.Type), "")
		return
	}

	event, err := events.NewTaskRequestEvent(req.Type, req.Key, req.Payload)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task payload", err)
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		HandleAPIError(w, r, err, "Failed to submit task")
		return
	}

	log.Debug("task request accepted",
		slog.String("event_id", event.ID.String()),
		slog.String("type", event.Type),
		slog.String("key", event.Key))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{
		EventID: event.ID,
		Type:    event.Type,
		Key:     event.Key,
	})
}

// ListTypes handles GET /api/tasks/types.
func (h *TaskHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, TaskTypesResponse{Types: h.catalog.Types()})
}

func (h *TaskHandler) knows(opType string) bool {
	for _, t := range h.catalog.Types() {
		if t == opType {
			return true
		}
	}
	return false
}
