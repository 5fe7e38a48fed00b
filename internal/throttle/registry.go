package throttle

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/phrazzld/scry-queue/internal/task"
)

// Config defines the queue built for each key.
type Config struct {
	// Concurrency is the per-key concurrency limit
	Concurrency int

	// RatePerSecond paces operation starts per key. Zero disables pacing.
	RatePerSecond float64

	// Burst is the token-bucket size. Defaults to 1 when pacing is on.
	Burst int

	// KeyTTL is how long an idle key is kept after its last submission.
	// Zero keeps keys forever.
	KeyTTL time.Duration

	// SweepInterval is how often Run looks for expired keys.
	// Defaults to KeyTTL.
	SweepInterval time.Duration
}

// DefaultConfig returns a Config with one operation per key at a time
// and a one minute TTL.
func DefaultConfig() Config {
	return Config{
		Concurrency:   1,
		KeyTTL:        time.Minute,
		SweepInterval: time.Minute,
	}
}

type entry struct {
	queue    *task.TaskQueue
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Registry owns the per-key queues. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*entry
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(config Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.RatePerSecond > 0 && config.Burst <= 0 {
		config.Burst = 1
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = config.KeyTTL
	}

	return &Registry{
		config:  config,
		entries: make(map[string]*entry),
		logger:  logger.With("component", "throttle_registry"),
		now:     time.Now,
	}
}

// Submit enqueues op on key's queue, creating the queue if needed. When
// pacing is on, the operation waits for a token once it holds a slot.
func (r *Registry) Submit(ctx context.Context, key string, op task.Operation, args ...any) *task.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(key)
	e.lastUsed = r.now()

	if op != nil && e.limiter != nil {
		op = paced(e.limiter, op)
	}
	return e.queue.Submit(ctx, op, args...)
}

// Queue returns the queue for key, if one exists.
func (r *Registry) Queue(key string) (*task.TaskQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.queue, true
}

// Keys returns the live keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of live keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats returns a snapshot of every key's queue.
func (r *Registry) Stats() map[string]task.Stats {
	stats := make(map[string]task.Stats)
	for key, q := range r.snapshot() {
		stats[key] = q.Stats()
	}
	return stats
}

// Sweep discards keys whose queue is idle and that have not been used
// for KeyTTL as of now. It returns how many keys were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.config.KeyTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.entries {
		if now.Sub(e.lastUsed) < r.config.KeyTTL || !e.queue.IsIdle() {
			continue
		}
		delete(r.entries, key)
		removed++
	}

	if removed > 0 {
		r.logger.Debug("expired idle keys", "removed", removed, "remaining", len(r.entries))
	}
	return removed
}

// Run sweeps expired keys every SweepInterval until ctx ends.
func (r *Registry) Run(ctx context.Context) error {
	if r.config.KeyTTL <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// PauseAll pauses every live queue.
func (r *Registry) PauseAll() {
	for _, q := range r.snapshot() {
		q.Pause()
	}
}

// ResumeAll resumes every live queue.
func (r *Registry) ResumeAll() {
	for _, q := range r.snapshot() {
		q.Resume()
	}
}

// ClearAll clears every live queue and returns the total removed.
func (r *Registry) ClearAll() int {
	total := 0
	for _, q := range r.snapshot() {
		total += q.Clear()
	}
	return total
}

// AwaitIdle waits until every queue that exists now is idle, or ctx ends.
func (r *Registry) AwaitIdle(ctx context.Context) error {
	p := pool.New().WithErrors()
	for _, q := range r.snapshot() {
		q := q
		p.Go(func() error {
			return q.AwaitIdle(ctx)
		})
	}
	return p.Wait()
}

func (r *Registry) snapshot() map[string]*task.TaskQueue {
	r.mu.Lock()
	defer r.mu.Unlock()

	queues := make(map[string]*task.TaskQueue, len(r.entries))
	for k, e := range r.entries {
		queues[k] = e.queue
	}
	return queues
}

func (r *Registry) entryLocked(key string) *entry {
	if e, ok := r.entries[key]; ok {
		return e
	}

	e := &entry{
		queue: task.NewTaskQueue(task.TaskQueueConfig{
			Concurrency: r.config.Concurrency,
		}, r.logger.With("throttle_key", key)),
	}
	if r.config.RatePerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(r.config.RatePerSecond), r.config.Burst)
	}
	r.entries[key] = e

	r.logger.Debug("created queue for key", "throttle_key", key, "keys", len(r.entries))
	return e
}

// paced delays op until limiter grants a token.
func paced(limiter *rate.Limiter, op task.Operation) task.Operation {
	return func(ctx context.Context, args ...any) (any, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return op(ctx, args...)
	}
}
