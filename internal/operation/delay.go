package operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/scry-queue/internal/task"
)

// TypeDelay is the registry name of the delay operation.
const TypeDelay = "delay"

// ErrRequestedFailure is returned by a delay operation asked to fail.
var ErrRequestedFailure = errors.New("operation failed on request")

// DelayPayload configures a delay operation.
type DelayPayload struct {
	DurationMS int    `json:"duration_ms" validate:"gte=0,lte=600000"`
	Fail       bool   `json:"fail"`
	Message    string `json:"message" validate:"max=256"`
}

// DelayResult is the value produced by a successful delay operation.
type DelayResult struct {
	Slept   time.Duration `json:"slept"`
	Message string        `json:"message,omitempty"`
}

// NewDelay is the Factory for TypeDelay.
func NewDelay(payload json.RawMessage) (task.Operation, error) {
	var p DelayPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	return Delay(p), nil
}

// Delay returns an operation that waits for the configured duration.
// It stops early with the context's error if ctx ends first.
func Delay(p DelayPayload) task.Operation {
	d := time.Duration(p.DurationMS) * time.Millisecond

	return func(ctx context.Context, args ...any) (any, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		if p.Fail {
			if p.Message != "" {
				return nil, fmt.Errorf("%w: %s", ErrRequestedFailure, p.Message)
			}
			return nil, ErrRequestedFailure
		}
		return DelayResult{Slept: d, Message: p.Message}, nil
	}
}
