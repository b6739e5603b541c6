// Package breaker implements a per-dependency circuit breaker guarding calls
// to unreliable external services.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State names the breaker lifecycle phases.
type State string

// Breaker states.
const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes one breaker instance. Each guarded dependency gets its own
// independently configured Breaker.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	MonitoringPeriod time.Duration
	RequestTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.MonitoringPeriod <= 0 {
		c.MonitoringPeriod = time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// OpenError is returned when the breaker short-circuits a call.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s is unavailable, retry after %ds", e.Name, int(e.RetryAfter.Seconds()+0.5))
}

// TimeoutError is returned when the wrapped operation outlives the per-call
// request timeout. The timeout counts as a breaker failure.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s call timed out after %s", e.Name, e.Timeout)
}

// StateListener observes state transitions, e.g. to export a metric.
type StateListener func(name string, state State)

// Breaker tracks recent failures for one dependency and short-circuits calls
// while the dependency is considered down. All state is guarded by a mutex;
// breakers are shared across every request hitting the same dependency.
type Breaker struct {
	name     string
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	onChange StateListener

	mu       sync.Mutex
	failures []time.Time
	state    State
	openedAt time.Time
	probing  bool
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithStateListener registers a transition callback.
func WithStateListener(fn StateListener) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// New builds a closed Breaker for the named dependency.
func New(name string, cfg Config, logger *zap.Logger, opts ...Option) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Exec runs op under the breaker. While open, calls fail immediately with
// *OpenError. Once the reset timeout has elapsed, exactly one trial call is
// let through; its outcome closes or re-opens the breaker.
func (b *Breaker) Exec(ctx context.Context, op func(ctx context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(callCtx) }()

	var opErr error
	select {
	case <-callCtx.Done():
		opErr = &TimeoutError{Name: b.name, Timeout: b.cfg.RequestTimeout}
		if ctx.Err() != nil {
			opErr = ctx.Err()
		}
	case opErr = <-done:
	}

	b.settle(trial, opErr)
	return opErr
}

// Do runs op under b and returns its value. It exists because methods cannot
// be generic.
func Do[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Exec(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// admit decides whether the call may proceed and whether it is a trial call.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateOpen:
		elapsed := now.Sub(b.openedAt)
		if elapsed < b.cfg.ResetTimeout {
			return false, &OpenError{Name: b.name, RetryAfter: b.cfg.ResetTimeout - elapsed}
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, &OpenError{Name: b.name, RetryAfter: b.cfg.ResetTimeout}
		}
		b.probing = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) settle(trial bool, opErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if trial {
		b.probing = false
		if opErr == nil {
			b.failures = nil
			b.transition(StateClosed)
			return
		}
		b.openedAt = now
		b.transition(StateOpen)
		return
	}

	if opErr == nil {
		// Decay instead of reset: drop the oldest failure so intermittent
		// successes recover the window gradually.
		if len(b.failures) > 0 {
			b.failures = b.failures[1:]
		}
		return
	}

	b.pruneLocked(now)
	b.failures = append(b.failures, now)
	if b.state == StateClosed && len(b.failures) >= b.cfg.FailureThreshold {
		b.openedAt = now
		b.transition(StateOpen)
		b.logger.Warn("circuit breaker opened",
			zap.String("dependency", b.name),
			zap.Int("failures", len(b.failures)),
			zap.Duration("reset_timeout", b.cfg.ResetTimeout),
		)
	}
}

func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringPeriod)
	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = kept
}

func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	b.state = next
	if b.onChange != nil {
		b.onChange(b.name, next)
	}
}
