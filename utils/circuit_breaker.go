package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// CircuitBreaker guards calls to the payment gateway. It opens after a run
// of consecutive failures, rejects calls for a cooldown period, then lets a
// single probe through; the probe's outcome decides between closing again
// and another cooldown.
type CircuitBreaker struct {
	name        string
	maxFailures uint32
	cooldown    time.Duration

	mu            sync.Mutex
	state         State
	failures      uint32
	openedAt      time.Time
	probeInFlight bool
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
		state:       StateClosed,
	}
}

// Execute runs req unless the breaker is open. The request's error is
// returned untouched so callers can keep their own taxonomy.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := req()
	cb.after(err == nil)
	return err
}

// State returns the current state, advancing open → half-open when the
// cooldown has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance(time.Now())
	return cb.state
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance(time.Now())

	switch cb.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probeInFlight {
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
	}
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probeInFlight = false

	if success {
		cb.failures = 0
		cb.state = StateClosed
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = time.Now()
	}
}

func (cb *CircuitBreaker) advance(now time.Time) {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.cooldown {
		cb.state = StateHalfOpen
	}
}
