package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-queue/internal/events"
)

// OperationBuilder turns a request's operation type and payload into an
// Operation. Unknown types must fail with ErrUnknownOperationType.
type OperationBuilder interface {
	Build(opType string, payload json.RawMessage) (Operation, error)
}

// RequestHandler implements events.EventHandler by building an operation
// for each TaskRequestEvent and submitting it. Events with a key go to the
// keyed submitter when one is configured; all others go to the shared queue.
type RequestHandler struct {
	builder OperationBuilder
	queue   Submitter
	keyed   KeyedSubmitter
	logger  *slog.Logger
}

// NewRequestHandler creates a RequestHandler. keyed may be nil, in which
// case every event goes to queue.
func NewRequestHandler(
	builder OperationBuilder,
	queue Submitter,
	keyed KeyedSubmitter,
	logger *slog.Logger,
) *RequestHandler {
	return &RequestHandler{
		builder: builder,
		queue:   queue,
		keyed:   keyed,
		logger:  logger.With("component", "request_handler"),
	}
}

// HandleEvent submits the work described by event. Unknown operation
// types are logged and skipped; a malformed payload is returned as an error.
func (h *RequestHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	outcome, err := h.Submit(ctx, event)
	if err != nil {
		if errors.Is(err, ErrUnknownOperationType) {
			h.logger.Debug("ignoring event with unsupported type",
				"event_type", event.Type,
				"event_id", event.ID)
			return nil
		}
		return err
	}

	go h.observe(event, outcome)
	return nil
}

// Submit builds and submits the operation for event and returns its outcome.
// The operation runs detached from ctx's cancellation, since the request
// that carried the event usually ends long before the work does.
func (h *RequestHandler) Submit(ctx context.Context, event *events.TaskRequestEvent) (*Outcome, error) {
	op, err := h.builder.Build(event.Type, event.Payload)
	if err != nil {
		if !errors.Is(err, ErrUnknownOperationType) {
			h.logger.Error("failed to build operation",
				"error", err,
				"event_id", event.ID,
				"event_type", event.Type)
		}
		return nil, fmt.Errorf("failed to build operation: %w", err)
	}

	runCtx := context.WithoutCancel(ctx)

	var outcome *Outcome
	if event.Key != "" && h.keyed != nil {
		outcome = h.keyed.Submit(runCtx, event.Key, op)
	} else {
		outcome = h.queue.Submit(runCtx, op)
	}

	h.logger.Info("task submitted",
		"task_id", outcome.ID(),
		"event_id", event.ID,
		"event_type", event.Type,
		"event_key", event.Key)
	return outcome, nil
}

func (h *RequestHandler) observe(event *events.TaskRequestEvent, outcome *Outcome) {
	_, err := outcome.Result()

	logger := h.logger.With(
		"task_id", outcome.ID(),
		"event_id", event.ID,
		"event_type", event.Type)

	switch {
	case err == nil:
		logger.Info("task completed successfully")
	case errors.Is(err, ErrQueueCleared):
		logger.Info("task discarded before it started")
	default:
		logger.Error("task execution failed", "error", err)
	}
}

// Ensure RequestHandler implements events.EventHandler
var _ events.EventHandler = (*RequestHandler)(nil)
