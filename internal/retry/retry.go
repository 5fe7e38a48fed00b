// Package retry wraps task operations with exponential-backoff retries.
//
// The task queue itself never retries. Callers that want retries compose
// them into the operation before submitting it:
//
//	q.Submit(ctx, retry.Wrap(op, retry.DefaultConfig(), nil))
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/phrazzld/scry-queue/internal/task"
)

// Config controls the backoff schedule.
type Config struct {
	// MaxRetries is the number of attempts after the first one
	MaxRetries uint64

	// InitialDelay is the wait before the first retry; it doubles each time
	InitialDelay time.Duration

	// MaxDelay caps any single wait
	MaxDelay time.Duration

	// JitterPercent randomizes each wait by up to this percentage
	JitterPercent uint64
}

// DefaultConfig returns 3 retries starting at 1s, capped at 30s, with 15% jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		JitterPercent: 15,
	}
}

func (c Config) backoff() goretry.Backoff {
	initial := c.InitialDelay
	if initial <= 0 {
		initial = time.Millisecond
	}

	b := goretry.NewExponential(initial)
	if c.JitterPercent > 0 {
		b = goretry.WithJitterPercent(c.JitterPercent, b)
	}
	if c.MaxDelay > 0 {
		b = goretry.WithCappedDuration(c.MaxDelay, b)
	}
	return goretry.WithMaxRetries(c.MaxRetries, b)
}

// Wrap returns an operation that runs op until it succeeds, shouldRetry
// rejects its error, retries run out, or ctx ends. A nil shouldRetry
// retries every error. The operation's last error is returned unchanged,
// except that ctx.Err() is returned when ctx ends during a backoff wait.
func Wrap(op task.Operation, cfg Config, shouldRetry func(error) bool) task.Operation {
	return func(ctx context.Context, args ...any) (any, error) {
		var result any

		err := goretry.Do(ctx, cfg.backoff(), func(ctx context.Context) error {
			v, err := op(ctx, args...)
			if err != nil {
				if shouldRetry == nil || shouldRetry(err) {
					return goretry.RetryableError(err)
				}
				return err
			}
			result = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
