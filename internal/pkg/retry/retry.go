// Package retry runs an operation a fixed number of times with a fixed pause
// between attempts. There is no backoff: every wait is the same Delay.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy is a bounded retry with a constant inter-attempt delay.
type Policy struct {
	Name     string
	Attempts int
	Delay    time.Duration
	Logger   *slog.Logger
	// Sleep is used between attempts; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result describes how a retried operation ended.
type Result struct {
	Attempts int
	Err      error
}

// OK reports whether the last attempt succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Do runs fn until it succeeds, the attempts are used up, or ctx is done.
// Failed attempts are logged at debug level only.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) Result {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var res Result
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		res.Err = fn(ctx, attempt)
		if res.Err == nil {
			return res
		}
		if ctx.Err() != nil {
			return res
		}
		logger.Debug("Attempt failed",
			"op", p.Name,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", res.Err)
		if attempt < attempts && p.Delay > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return res
			}
		}
	}
	return res
}

// Value runs fn under p and returns its value alongside the Result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, Result) {
	var out T
	res := p.Do(ctx, func(ctx context.Context, attempt int) error {
		v, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, res
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
