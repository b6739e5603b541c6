package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(clock *fakeClock) *Breaker {
	return New("testsvc", Config{
		FailureThreshold: 3,
		ResetTimeout:     10 * time.Second,
		MonitoringPeriod: time.Minute,
		RequestTimeout:   time.Second,
	}, nil, WithClock(clock.Now))
}

var errBoom = errors.New("boom")

func failing(context.Context) error    { return errBoom }
func succeeding(context.Context) error { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, b.Exec(context.Background(), failing), errBoom)
	}
	assert.Equal(t, StateOpen, b.State())

	// Fourth call short-circuits without invoking the operation.
	invoked := false
	err := b.Exec(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.False(t, invoked)
	assert.Contains(t, err.Error(), "retry after")
}

func TestBreakerTrialCallAfterResetTimeout(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = b.Exec(context.Background(), failing)
	}
	require.Equal(t, StateOpen, b.State())

	clock.Advance(11 * time.Second)

	// Exactly one call is let through; success closes the breaker.
	require.NoError(t, b.Exec(context.Background(), succeeding))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = b.Exec(context.Background(), failing)
	}
	clock.Advance(11 * time.Second)

	require.ErrorIs(t, b.Exec(context.Background(), failing), errBoom)
	assert.Equal(t, StateOpen, b.State())

	// Fresh deadline: still short-circuits right after the failed trial.
	var openErr *OpenError
	assert.ErrorAs(t, b.Exec(context.Background(), succeeding), &openErr)
}

func TestBreakerSuccessDecaysFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := newTestBreaker(clock)

	// Two failures, one success dropping the oldest, then two more failures:
	// the window holds 3 and the breaker opens.
	_ = b.Exec(context.Background(), failing)
	_ = b.Exec(context.Background(), failing)
	require.NoError(t, b.Exec(context.Background(), succeeding))
	_ = b.Exec(context.Background(), failing)
	assert.Equal(t, StateClosed, b.State())
	_ = b.Exec(context.Background(), failing)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerRequestTimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()

	b := New("slowsvc", Config{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
		MonitoringPeriod: time.Minute,
		RequestTimeout:   20 * time.Millisecond,
	}, nil)

	err := b.Exec(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			<-time.After(5 * time.Second)
			return ctx.Err()
		}
	})
	var toErr *TimeoutError
	require.ErrorAs(t, err, &toErr)
	assert.Equal(t, StateOpen, b.State())
}

func TestDoReturnsValue(t *testing.T) {
	t.Parallel()

	b := New("valsvc", Config{}, nil)
	got, err := Do(context.Background(), b, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
