// Package retry runs an operation under a bounded attempt budget with a
// pluggable backoff and clock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Clock sleeps between attempts. Tests substitute a clock that records the
// requested delays instead of waiting.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock waits on a timer and honours context cancellation.
var RealClock Clock = realClock{}

// ExhaustedError is returned once every attempt failed. Err combines the
// error of each attempt in order.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type Policy struct {
	MaxAttempts int
	// NewBackoff returns a fresh backoff for each Do call.
	NewBackoff func() goretry.Backoff
	Clock      Clock
	// Retryable reports whether an attempt error may be retried. Nil retries
	// every error except context cancellation.
	Retryable func(error) bool
	Logger    *zap.Logger
	Name      string
}

// Linear yields base, 2*base, 3*base, ...
func Linear(base time.Duration) goretry.Backoff {
	var attempt int64
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * base, false
	})
}

// LinearPolicy is the signup policy: attempts tries, sleeping base*n after the nth failure.
func LinearPolicy(attempts int, base time.Duration) Policy {
	return Policy{
		MaxAttempts: attempts,
		NewBackoff:  func() goretry.Backoff { return Linear(base) },
		Clock:       RealClock,
	}
}

func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	clock := p.Clock
	if clock == nil {
		clock = RealClock
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var base goretry.Backoff = goretry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	if p.NewBackoff != nil {
		base = p.NewBackoff()
	}
	backoff := goretry.WithMaxRetries(uint64(maxAttempts-1), base)

	var errs error
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		errs = multierr.Append(errs, err)

		if !p.retryable(err) {
			return err
		}
		delay, stop := backoff.Next()
		if stop {
			return &ExhaustedError{Attempts: attempt, Err: errs}
		}
		log.Warn("attempt failed, retrying",
			zap.String("operation", p.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := clock.Sleep(ctx, delay); err != nil {
			return multierr.Append(errs, err)
		}
	}
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
