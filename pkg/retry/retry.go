// Package retry re-runs calls to the Albion gameinfo API and the Telegram
// Bot API with exponential backoff. Only errors the caller marks with
// Retryable are retried; a server-provided Retry-After wins over the backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// retryableError marks an error as worth another attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err for retry. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// RetryAfterHinter is implemented by errors that carry a server-provided
// delay (HTTP 429 Retry-After). The hint replaces the computed backoff,
// capped at the retrier's max delay.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// Backoff computes the pause before each retry:
// Initial * Multiplier^(n-1), capped at Max, spread by ±Jitter.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Delay returns the pause before retry number n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(n-1))
	d = math.Min(d, float64(b.Max))
	if b.Jitter > 0 {
		d += d * b.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Retrier runs an operation up to a fixed number of attempts.
type Retrier struct {
	attempts int
	backoff  Backoff
	onRetry  func(attempt int, err error, delay time.Duration)
}

// Option configures a Retrier. Out-of-range values keep the default.
type Option func(*Retrier)

// WithMaxAttempts sets the total number of attempts, the first included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithInitialDelay sets the pause before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.backoff.Initial = d
		}
	}
}

// WithMaxDelay caps every pause, Retry-After hints included.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.backoff.Max = d
		}
	}
}

// WithJitter sets the random spread, 0 to 1.
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		if j >= 0 && j <= 1 {
			r.backoff.Jitter = j
		}
	}
}

// WithOnRetry registers a callback run before each pause, for logging.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New creates a Retrier: 3 attempts, 100ms doubling to at most 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		attempts: 3,
		backoff:  Backoff{Initial: 100 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2, Jitter: 0.1},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs op until it succeeds, returns an unmarked error, or runs out of
// attempts. After the last attempt the unmarked cause is returned. When ctx
// ends during a pause the last error is returned.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		var marked *retryableError
		if err == nil || !errors.As(err, &marked) {
			return err
		}
		if attempt >= r.attempts {
			return marked.err
		}
		lastErr = err

		delay := r.pause(attempt, err)
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
}

func (r *Retrier) pause(attempt int, err error) time.Duration {
	var h RetryAfterHinter
	if errors.As(err, &h) && h.RetryAfterHint() > 0 {
		return min(h.RetryAfterHint(), r.backoff.Max)
	}
	return r.backoff.Delay(attempt)
}

// Do runs op with a one-off Retrier.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// GameAPIRetrier is tuned for the Albion gameinfo API, which is slow and
// flaky under load. opts override the preset.
func GameAPIRetrier(opts ...Option) *Retrier {
	r := New(WithMaxAttempts(3), WithInitialDelay(time.Second), WithMaxDelay(15*time.Second), WithJitter(0.2))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TelegramRetrier is tuned for the Telegram Bot API. opts override the preset.
func TelegramRetrier(opts ...Option) *Retrier {
	r := New(WithMaxAttempts(5), WithInitialDelay(100*time.Millisecond), WithMaxDelay(30*time.Second))
	r.backoff.Multiplier = 1.5
	for _, opt := range opts {
		opt(r)
	}
	return r
}
