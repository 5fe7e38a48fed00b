package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Operation is a unit of asynchronous work accepted by the queue.
// The args are the values given to Submit, forwarded verbatim.
type Operation func(ctx context.Context, args ...any) (any, error)

// Submitter accepts operations for execution. *TaskQueue implements it.
type Submitter interface {
	// Submit enqueues op and returns a handle for its eventual result
	Submit(ctx context.Context, op Operation, args ...any) *Outcome
}

// KeyedSubmitter routes operations to a queue selected by key.
type KeyedSubmitter interface {
	Submit(ctx context.Context, key string, op Operation, args ...any) *Outcome
}

// Outcome is the caller-visible handle for a submitted operation.
// It is resolved exactly once, with either the operation's value or an error.
type Outcome struct {
	id    uuid.UUID
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newOutcome() *Outcome {
	return &Outcome{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

// ID returns the identifier assigned to the work item at submission.
func (o *Outcome) ID() uuid.UUID {
	return o.id
}

// Done returns a channel that is closed once the outcome is resolved.
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the outcome resolves or ctx ends, whichever is first.
// A context error is returned as-is and does not affect the work item.
func (o *Outcome) Wait(ctx context.Context) (any, error) {
	select {
	case <-o.done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until the outcome resolves.
func (o *Outcome) Result() (any, error) {
	<-o.done
	return o.value, o.err
}

// Err returns the failure of a resolved outcome, or nil if it succeeded
// or has not resolved yet.
func (o *Outcome) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// resolve delivers the result. Calls after the first are ignored.
func (o *Outcome) resolve(value any, err error) bool {
	resolved := false
	o.once.Do(func() {
		o.value = value
		o.err = err
		close(o.done)
		resolved = true
	})
	return resolved
}

// Await waits for o and asserts its value to T.
func Await[T any](ctx context.Context, o *Outcome) (T, error) {
	var zero T

	v, err := o.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("outcome %s: unexpected result type %T", o.id, v)
	}
	return typed, nil
}
