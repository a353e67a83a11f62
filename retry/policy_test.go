package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type recordingClock struct {
	sleeps []time.Duration
	err    error
}

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return c.err
}

func testPolicy(clock Clock) Policy {
	return Policy{
		MaxAttempts: 3,
		NewBackoff:  func() goretry.Backoff { return Linear(time.Second) },
		Clock:       clock,
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	clock := &recordingClock{}
	calls := 0
	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("network unreachable")
	})

	require.Error(t, err)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Len(t, multierr.Errors(exhausted.Err), 3)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestDoSucceedsOnSecondAttempt(t *testing.T) {
	clock := &recordingClock{}
	calls := 0
	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("email taken")
	clock := &recordingClock{}
	p := testPolicy(clock)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.sleeps)
}

func TestDoAbortsWhenSleepCancelled(t *testing.T) {
	clock := &recordingClock{err: context.Canceled}
	calls := 0
	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoSingleAttempt(t *testing.T) {
	clock := &recordingClock{}
	p := testPolicy(clock)
	p.MaxAttempts = 1

	err := p.Do(context.Background(), func(context.Context) error { return errors.New("nope") })

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Empty(t, clock.sleeps)
}

func TestRealClockHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, RealClock.Sleep(ctx, time.Hour), context.Canceled)
}
