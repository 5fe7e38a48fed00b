package task

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// TaskQueueConfig holds configuration options for a TaskQueue
type TaskQueueConfig struct {
	// Concurrency is the maximum number of operations running at once.
	// If zero or negative, defaults to 1
	Concurrency int

	// StartPaused creates the queue in the paused state. Nothing is
	// dispatched until Resume is called.
	StartPaused bool
}

// DefaultTaskQueueConfig returns a TaskQueueConfig with reasonable defaults
func DefaultTaskQueueConfig() TaskQueueConfig {
	return TaskQueueConfig{
		Concurrency: 1,
	}
}

// Stats is a point-in-time snapshot of a queue.
type Stats struct {
	Pending     int    `json:"pending"`
	Running     int    `json:"running"`
	Concurrency int    `json:"concurrency"`
	Paused      bool   `json:"paused"`
	Submitted   uint64 `json:"submitted"`
	Succeeded   uint64 `json:"succeeded"`
	Failed      uint64 `json:"failed"`
	Cleared     uint64 `json:"cleared"`
}

// workItem is a submitted operation. It lives in pending until a
// dispatch slot frees, then belongs to the goroutine running it.
type workItem struct {
	ctx     context.Context
	op      Operation
	args    []any
	outcome *Outcome
}

// TaskQueue runs submitted operations in FIFO order with at most
// Concurrency of them in flight. It is safe for concurrent use.
type TaskQueue struct {
	mu sync.Mutex

	pending     *list.List
	running     int
	concurrency int
	paused      bool

	// idleWaiters are closed together at the next idle transition
	idleWaiters []chan struct{}

	submitted uint64
	succeeded uint64
	failed    uint64
	cleared   uint64

	logger *slog.Logger

	// errorHandler is called when an operation fails.
	// If nil, errors are only logged
	errorHandler func(id uuid.UUID, err error)

	// completionHandler is called for every delivered outcome
	completionHandler func(id uuid.UUID, value any, err error)
}

// NewTaskQueue creates a new task queue with the specified configuration
func NewTaskQueue(config TaskQueueConfig, logger *slog.Logger) *TaskQueue {
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
		logger.Warn("invalid concurrency specified, using default",
			"specified_concurrency", config.Concurrency,
			"default_concurrency", 1)
	}

	return &TaskQueue{
		pending:     list.New(),
		concurrency: concurrency,
		paused:      config.StartPaused,
		logger:      logger.With("component", "task_queue"),
	}
}

// SetErrorHandler sets a callback invoked for every failed operation.
// Cleared items are not operation failures and do not reach it.
func (q *TaskQueue) SetErrorHandler(handler func(id uuid.UUID, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errorHandler = handler
}

// SetCompletionHandler sets a callback invoked for every delivered outcome,
// including items failed with ErrQueueCleared.
func (q *TaskQueue) SetCompletionHandler(handler func(id uuid.UUID, value any, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completionHandler = handler
}

// Submit enqueues op and returns its outcome handle. It never blocks and
// never rejects: a nil op yields an outcome already failed with
// ErrNilOperation. When the queue is running and a slot is free, the
// operation is dispatched before Submit returns.
func (q *TaskQueue) Submit(ctx context.Context, op Operation, args ...any) *Outcome {
	outcome := newOutcome()
	if op == nil {
		outcome.resolve(nil, ErrNilOperation)
		return outcome
	}
	if ctx == nil {
		ctx = context.Background()
	}

	item := &workItem{
		ctx:     ctx,
		op:      op,
		args:    args,
		outcome: outcome,
	}

	q.mu.Lock()
	q.pending.PushBack(item)
	q.submitted++
	started := q.dispatchLocked()
	pending := q.pending.Len()
	running := q.running
	q.mu.Unlock()

	q.logger.Debug("task enqueued",
		"task_id", outcome.ID(),
		"pending", pending,
		"running", running)

	q.start(started)
	return outcome
}

// Pause stops new operations from starting. Running ones continue.
func (q *TaskQueue) Pause() {
	q.mu.Lock()
	wasPaused := q.paused
	q.paused = true
	q.mu.Unlock()

	if !wasPaused {
		q.logger.Info("task queue paused")
	}
}

// Resume clears the paused state and fills every free slot.
func (q *TaskQueue) Resume() {
	q.mu.Lock()
	wasPaused := q.paused
	q.paused = false
	started := q.dispatchLocked()
	q.mu.Unlock()

	if wasPaused {
		q.logger.Info("task queue resumed", "dispatched", len(started))
	}
	q.start(started)
}

// Clear removes every pending item and fails its outcome with
// ErrQueueCleared. Running operations are unaffected. It returns the
// number of items removed.
func (q *TaskQueue) Clear() int {
	q.mu.Lock()
	removed := make([]*workItem, 0, q.pending.Len())
	for e := q.pending.Front(); e != nil; e = e.Next() {
		removed = append(removed, e.Value.(*workItem))
	}
	q.pending.Init()
	q.cleared += uint64(len(removed))
	for _, item := range removed {
		item.outcome.resolve(nil, ErrQueueCleared)
	}
	onComplete := q.completionHandler
	waiters := q.takeIdleWaitersLocked()
	q.mu.Unlock()

	releaseWaiters(waiters)

	if len(removed) > 0 {
		q.logger.Info("task queue cleared", "cleared", len(removed))
	}
	if onComplete != nil {
		for _, item := range removed {
			onComplete(item.outcome.ID(), nil, ErrQueueCleared)
		}
	}

	return len(removed)
}

// PendingCount returns the number of items not yet started.
func (q *TaskQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// RunningCount returns the number of operations currently executing.
func (q *TaskQueue) RunningCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Paused reports whether the queue is paused.
func (q *TaskQueue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Concurrency returns the queue's concurrency limit.
func (q *TaskQueue) Concurrency() int {
	return q.concurrency
}

// IsIdle reports whether nothing is pending and nothing is running.
func (q *TaskQueue) IsIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isIdleLocked()
}

// Stats returns a snapshot of the queue's state and counters.
func (q *TaskQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:     q.pending.Len(),
		Running:     q.running,
		Concurrency: q.concurrency,
		Paused:      q.paused,
		Submitted:   q.submitted,
		Succeeded:   q.succeeded,
		Failed:      q.failed,
		Cleared:     q.cleared,
	}
}

// Idle returns a channel that is closed the next time the queue has
// nothing pending and nothing running. If the queue is idle now, the
// returned channel is already closed. Each non-idle period needs a fresh call.
// The channel stays registered until that idle transition; callers that may
// give up first should use AwaitIdle.
func (q *TaskQueue) Idle() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idleLocked()
}

// AwaitIdle blocks until the queue is idle or ctx ends. A caller that gives
// up leaves nothing registered behind.
func (q *TaskQueue) AwaitIdle(ctx context.Context) error {
	q.mu.Lock()
	ch := q.idleLocked()
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		q.removeIdleWaiterLocked(ch)
		q.mu.Unlock()
		return ctx.Err()
	}
}

func (q *TaskQueue) idleLocked() chan struct{} {
	ch := make(chan struct{})
	if q.isIdleLocked() {
		close(ch)
		return ch
	}
	q.idleWaiters = append(q.idleWaiters, ch)
	return ch
}

func (q *TaskQueue) removeIdleWaiterLocked(ch chan struct{}) {
	for i, w := range q.idleWaiters {
		if w == ch {
			q.idleWaiters = append(q.idleWaiters[:i], q.idleWaiters[i+1:]...)
			return
		}
	}
}

func (q *TaskQueue) isIdleLocked() bool {
	return q.pending.Len() == 0 && q.running == 0
}

// dispatchLocked moves items from the head of pending into running while
// the queue is not paused and slots are free. The slot is taken here, under
// the lock, so concurrent completions can never exceed the limit.
func (q *TaskQueue) dispatchLocked() []*workItem {
	if q.paused {
		return nil
	}

	var started []*workItem
	for q.running < q.concurrency && q.pending.Len() > 0 {
		item := q.pending.Remove(q.pending.Front()).(*workItem)
		q.running++
		started = append(started, item)
	}
	return started
}

// takeIdleWaitersLocked detaches the waiter set if the queue is idle.
func (q *TaskQueue) takeIdleWaitersLocked() []chan struct{} {
	if !q.isIdleLocked() || len(q.idleWaiters) == 0 {
		return nil
	}
	waiters := q.idleWaiters
	q.idleWaiters = nil
	return waiters
}

func releaseWaiters(waiters []chan struct{}) {
	for _, ch := range waiters {
		close(ch)
	}
}

func (q *TaskQueue) start(items []*workItem) {
	for _, item := range items {
		go q.run(item)
	}
}

// run executes one dispatched item and hands its slot to the next one.
func (q *TaskQueue) run(item *workItem) {
	id := item.outcome.ID()
	q.logger.Debug("task started", "task_id", id)

	value, err := q.execute(item)

	q.mu.Lock()
	q.running--
	if err != nil {
		q.failed++
	} else {
		q.succeeded++
	}
	item.outcome.resolve(value, err)
	next := q.dispatchLocked()
	waiters := q.takeIdleWaitersLocked()
	onError := q.errorHandler
	onComplete := q.completionHandler
	q.mu.Unlock()

	// Hand the slot on before user callbacks, which may block.
	q.start(next)
	releaseWaiters(waiters)

	if err != nil {
		q.logger.Debug("task failed", "task_id", id, "error", err)
		if onError != nil {
			onError(id, err)
		}
	} else {
		q.logger.Debug("task completed", "task_id", id)
	}
	if onComplete != nil {
		onComplete(id, value, err)
	}
}

// execute runs the operation, converting a panic into an error.
func (q *TaskQueue) execute(item *workItem) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task operation panicked",
				"task_id", item.outcome.ID(),
				"panic", r,
				"stack", string(debug.Stack()))
			value = nil
			err = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
		}
	}()

	return item.op(item.ctx, item.args...)
}
