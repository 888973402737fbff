// Package circuitbreaker stops the bot from hammering the Albion gameinfo
// API or Telegram while they are down, so callers fail fast and the daily
// cycle can report "ranking unavailable" instead of hanging on retries.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected until the cool-down ends
	StateHalfOpen              // a few trial calls decide whether to close again
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen rejects a call while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests rejects a call once the half-open trial slots are taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejection reports whether err came from the breaker itself
// rather than from the protected call.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// StateChangeFunc observes transitions, e.g. to log them.
type StateChangeFunc func(name string, from, to State)

type settings struct {
	failureThreshold int
	successThreshold int
	coolDown         time.Duration
	halfOpenSlots    int
	onStateChange    StateChangeFunc
	now              func() time.Time
}

// Option configures a breaker. Non-positive values keep the default.
type Option func(*settings)

// WithFailureThreshold sets how many consecutive failures open the breaker (default 5).
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close it again (default 2).
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.successThreshold = n
		}
	}
}

// WithTimeout sets how long the breaker stays open (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.coolDown = d
		}
	}
}

// WithMaxHalfOpenRequests sets how many half-open trial calls may run at once (default 1).
func WithMaxHalfOpenRequests(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.halfOpenSlots = n
		}
	}
}

// WithOnStateChange registers a transition callback. It runs under the
// breaker's lock and must not call back into the breaker.
func WithOnStateChange(fn StateChangeFunc) Option {
	return func(s *settings) { s.onStateChange = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Counts are the breaker's counters, exposed on the stats endpoint.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards calls to one remote service.
type CircuitBreaker struct {
	name string
	cfg  settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	trials   int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := settings{
		failureThreshold: 5,
		successThreshold: 2,
		coolDown:         30 * time.Second,
		halfOpenSlots:    1,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{name: name, cfg: cfg}
}

// Execute runs fn unless the breaker rejects it, and records the outcome.
// A call that ends because its own context was cancelled or timed out is
// not held against the remote service.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)

	failed := err != nil && !(ctx.Err() != nil && errors.Is(err, ctx.Err()))
	cb.record(failed)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.cfg.now().Sub(cb.openedAt) < cb.cfg.coolDown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.trials = 1
	case StateHalfOpen:
		if cb.trials >= cb.cfg.halfOpenSlots {
			return ErrTooManyRequests
		}
		cb.trials++
	}
	return nil
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A finished trial frees its half-open slot.
	if cb.state == StateHalfOpen && cb.trials > 0 {
		cb.trials--
	}

	c := &cb.counts
	c.Requests++

	if !failed {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && c.ConsecutiveSuccesses >= cb.cfg.successThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0

	// One failed trial is enough to reopen.
	if cb.state == StateHalfOpen || c.ConsecutiveFailures >= cb.cfg.failureThreshold {
		cb.openedAt = cb.cfg.now()
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.trials = 0

	if cb.cfg.onStateChange != nil {
		cb.cfg.onStateChange(cb.name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a copy of the counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// GameAPIBreaker is tuned for the Albion gameinfo API, which has frequent
// multi-minute outages: it opens quickly and stays open for two minutes.
func GameAPIBreaker(onStateChange StateChangeFunc) *CircuitBreaker {
	return New("albion-gameinfo",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(2*time.Minute),
		WithOnStateChange(onStateChange),
	)
}

// TelegramAPIBreaker is tuned for the Telegram Bot API.
func TelegramAPIBreaker(onStateChange StateChangeFunc) *CircuitBreaker {
	return New("telegram-api",
		WithFailureThreshold(5),
		WithSuccessThreshold(1),
		WithTimeout(30*time.Second),
		WithMaxHalfOpenRequests(2),
		WithOnStateChange(onStateChange),
	)
}
