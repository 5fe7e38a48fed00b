package retry

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/phrazzld/scry-queue/internal/task"
)

// Builder decorates a task.OperationBuilder so every operation it builds
// is retried with the configured backoff.
type Builder struct {
	next   task.OperationBuilder
	config Config
}

// NewBuilder wraps next. With MaxRetries at zero the built operations are
// returned untouched.
func NewBuilder(next task.OperationBuilder, config Config) *Builder {
	return &Builder{next: next, config: config}
}

// Build implements task.OperationBuilder.
func (b *Builder) Build(opType string, payload json.RawMessage) (task.Operation, error) {
	op, err := b.next.Build(opType, payload)
	if err != nil {
		return nil, err
	}
	if b.config.MaxRetries == 0 {
		return op, nil
	}
	return Wrap(op, b.config, Transient), nil
}

// Transient reports whether err is worth retrying. Context errors are not.
// An error that knows its own answer through a Retryable method, such as an
// HTTP status error, decides for itself.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

var _ task.OperationBuilder = (*Builder)(nil)
