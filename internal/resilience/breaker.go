// Package resilience provides reliability patterns for calls to repository hosts.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureFilter decides which errors count as failures. Errors it
// rejects (a missing file, say) pass through without affecting the breaker.
// Context cancellation never counts.
func WithFailureFilter(f func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = f }
}

// WithStateChange registers a callback invoked, outside the lock, on every
// state transition.
func WithStateChange(f func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = f }
}

// Breaker opens after maxFailures consecutive failures and rejects calls
// until timeout elapses. It then lets a single probe through: success
// closes it, failure reopens it.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	probing     bool
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	isFailure   func(error) bool
	onChange    func(from, to State)
	now         func() time.Time
}

// NewBreaker creates a circuit breaker.
func NewBreaker(maxFailures int, timeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		state:       StateClosed,
		maxFailures: max(maxFailures, 1),
		timeout:     timeout,
		isFailure:   func(err error) bool { return err != nil },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	return b.Call(context.Background(), func(context.Context) error { return fn() })
}

// Call runs fn with ctx unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !b.acquire() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// State returns the current state, reporting an open breaker whose timeout
// has elapsed as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) acquire() bool {
	b.mu.Lock()
	from := b.state
	allowed := false
	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = StateHalfOpen
			b.probing = true
			allowed = true
		}
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			allowed = true
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return allowed
}

func (b *Breaker) record(err error) {
	failed := err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		b.isFailure(err)

	b.mu.Lock()
	from := b.state
	wasProbe := b.probing
	b.probing = false
	switch {
	case failed:
		b.failures++
		if from == StateHalfOpen || b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case err == nil || wasProbe:
		b.failures = 0
		b.state = StateClosed
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}
