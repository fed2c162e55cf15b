// Package circuitbreaker stops calling a failing dependency for a while
// instead of piling up requests against it.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling the dependency.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when all half-open probes are in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Settings configure a breaker.
type Settings struct {
	Name string

	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration

	// HalfOpenProbes limits concurrent calls while half-open.
	HalfOpenProbes int

	// OnStateChange is called with the lock held; keep it cheap.
	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. Nil counts every error.
	IsFailure func(error) bool
}

// Option mutates Settings.
type Option func(*Settings)

// WithFailureThreshold sets the number of failures that opens the circuit.
func WithFailureThreshold(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the number of probes needed to close the circuit.
func WithSuccessThreshold(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.SuccessThreshold = n
		}
	}
}

// WithOpenTimeout sets the open period.
func WithOpenTimeout(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.OpenTimeout = d
		}
	}
}

func withHalfOpenProbes(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.HalfOpenProbes = n
		}
	}
}

// WithOnStateChange registers a transition hook.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *Settings) {
		s.OnStateChange = fn
	}
}

// WithIsFailure sets the failure classifier.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *Settings) {
		s.IsFailure = fn
	}
}

// Counts are cumulative except for the consecutive counters.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	s := Settings{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		HalfOpenProbes:   1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &CircuitBreaker{settings: s, now: time.Now, state: StateClosed}
}

// Execute calls fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.settings.OpenTimeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil
	case StateHalfOpen:
		if cb.probes >= cb.settings.HalfOpenProbes {
			return ErrTooManyRequests
		}
		cb.probes++
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	failed := err != nil
	if failed && cb.settings.IsFailure != nil {
		failed = cb.settings.IsFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen {
			if cb.counts.ConsecutiveSuccesses >= cb.settings.SuccessThreshold {
				cb.transition(StateClosed)
			} else if cb.probes > 0 {
				cb.probes--
			}
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.settings.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
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
	cb.probes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
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

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}

// Reset closes the circuit and clears the counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.probes = 0
}

// GradeServiceBreaker guards the remote grade service.
func GradeServiceBreaker(failureThreshold int, openTimeout time.Duration, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"grade-service",
		WithFailureThreshold(failureThreshold),
		WithSuccessThreshold(1),
		WithOpenTimeout(openTimeout),
		withHalfOpenProbes(1),
		WithOnStateChange(onStateChange),
	)
}
