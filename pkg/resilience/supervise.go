// Package resilience provides the two failure-recovery primitives spec.md
// §4.C names: a supervise-and-restart loop for background tasks, and a
// bounded retry wrapper for one-shot operations. Both are grounded on
// original_source's resilience.py (run_background_task/with_retries):
// unbounded restart with a flat 1s backoff, no jitter, no exponential
// growth — spec.md §9 is explicit that this is intentional.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// restartBackoff is the fixed delay between supervised restarts, per
// spec.md §4.C.
const restartBackoff = time.Second

// Supervise runs fn repeatedly until ctx is cancelled. If fn returns nil,
// it is logged as a clean termination and restarted; if fn returns an
// error (other than ctx.Err()), it is logged with the cause and
// restarted. Supervise only returns once ctx is done.
func Supervise(ctx context.Context, name string, fn func(context.Context) error) {
	for {
		err := fn(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("background task raised, restarting", "task", name, "error", err)
		} else {
			slog.Warn("background task terminated, restarting", "task", name)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartBackoff):
		}
	}
}

// ErrRetriesExhausted wraps the last error observed by WithRetries when
// the retry budget runs out. errors.Is/As unwraps to the underlying cause.
type ErrRetriesExhausted struct {
	Attempts int
	Cause    error
}

func (e *ErrRetriesExhausted) Error() string {
	return "resilience: exhausted retries"
}

func (e *ErrRetriesExhausted) Unwrap() error { return e.Cause }

// WithRetries returns a wrapper that calls fn, retrying up to n-1 more
// times with a fixed delay between attempts on failure, re-raising the
// last failure (wrapped in ErrRetriesExhausted) once the budget is spent.
// Matches original_source's with_retries(n_retries, t_between).
func WithRetries(n int, delay time.Duration) func(ctx context.Context, fn func(context.Context) error) error {
	return func(ctx context.Context, fn func(context.Context) error) error {
		var lastErr error
		for i := 0; i < n; i++ {
			lastErr = fn(ctx)
			if lastErr == nil {
				return nil
			}
			if errors.Is(lastErr, context.Canceled) {
				return lastErr
			}
			if i == n-1 {
				break
			}
			slog.Warn("retrying operation", "attempt", i+1, "of", n, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		return &ErrRetriesExhausted{Attempts: n, Cause: lastErr}
	}
}

// Transport retry policy defaults, per spec.md §4.C.
const (
	TransportRetries = 60
	TransportDelay   = 5 * time.Second

	DeltaPublishRetries = 10
	DeltaPublishDelay   = 5 * time.Second
)

// Policy bundles a WithRetries budget so it can be passed around and
// hot-reloaded as one value instead of two separate constants.
type Policy struct {
	Retries int
	Delay   time.Duration
}

// DefaultTransportPolicy is the manager's out-of-the-box immobilize-command
// transport policy, matching TransportRetries/TransportDelay.
var DefaultTransportPolicy = Policy{Retries: TransportRetries, Delay: TransportDelay}

// Retry runs fn under this policy's retry budget.
func (p Policy) Retry(ctx context.Context, fn func(context.Context) error) error {
	return WithRetries(p.Retries, p.Delay)(ctx, fn)
}
