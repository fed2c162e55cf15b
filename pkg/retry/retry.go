// Package retry runs operations with exponential backoff and jitter.
// Used for calls that cross the process boundary: the remote grade
// service and the initial database connection.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryableError marks an error as transient.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so that Retrier tries again.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// PermanentError stops the retry loop immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Retrier gives up at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Policy holds the backoff parameters.
type Policy struct {
	// MaxAttempts counts the first call too.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by +/- Jitter*delay. 0 disables it.
	Jitter float64

	// ShouldRetry overrides the default classification
	// (only RetryableError is retried).
	ShouldRetry func(error) bool

	// OnRetry runs before each sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// defaultPolicy is 3 attempts starting at 100ms.
func defaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Option mutates a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total number of attempts.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the second attempt.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.InitialDelay = d
		}
	}
}

// WithMaxDelay caps a single delay.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.MaxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor (>= 1).
func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		if m >= 1.0 {
			p.Multiplier = m
		}
	}
}

// WithJitter sets the jitter factor in [0, 1].
func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1.0 {
			p.Jitter = j
		}
	}
}

// WithShouldRetry sets a custom classifier.
func WithShouldRetry(fn func(error) bool) Option {
	return func(p *Policy) {
		p.ShouldRetry = fn
	}
}

// WithOnRetry sets a hook, typically for logging.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *Policy) {
		p.OnRetry = fn
	}
}

// Retrier executes operations according to a Policy.
type Retrier struct {
	policy Policy
}

// New builds a Retrier from the default policy and opts.
func New(opts ...Option) *Retrier {
	p := defaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// Policy returns a copy of the effective policy.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do calls op until it succeeds, returns a non-retryable error,
// the attempts run out, or ctx is done. Marker wrappers are stripped
// from the returned error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return unmark(lastErr)
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanent(err) || !r.shouldRetry(err) || attempt == r.policy.MaxAttempts {
			return unmark(err)
		}

		delay := r.delay(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unmark(lastErr)
		case <-timer.C:
		}
	}

	return unmark(lastErr)
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.policy.ShouldRetry != nil {
		return r.policy.ShouldRetry(err)
	}
	return IsRetryable(err)
}

// delay returns InitialDelay * Multiplier^(attempt-1), capped and jittered.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func unmark(err error) error {
	var re *RetryableError
	if errors.As(err, &re) && err == error(re) {
		return re.Err
	}
	var pe *PermanentError
	if errors.As(err, &pe) && err == error(pe) {
		return pe.Err
	}
	return err
}

// Do is shorthand for New(opts...).Do(ctx, op).
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoWithData runs op with r and returns its result.
func DoWithData[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// GradeServiceRetrier is tuned for short synchronous HTTP lookups.
// Extra opts are applied on top of the preset.
func GradeServiceRetrier(maxAttempts int, opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(50 * time.Millisecond),
		WithMaxDelay(1 * time.Second),
		WithMultiplier(2.0),
		WithJitter(0.2),
	}, opts...)...)
}

// DatabaseRetrier is tuned for waiting on a database that is starting up.
// Extra opts are applied on top of the preset.
func DatabaseRetrier(opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(5),
		WithInitialDelay(200 * time.Millisecond),
		WithMaxDelay(3 * time.Second),
		WithMultiplier(2.0),
		WithJitter(0.05),
	}, opts...)...)
}
