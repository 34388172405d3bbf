// Package circuitbreaker stops the service from hammering an unhealthy ledger node. After a
// run of consecutive failed ledger calls the breaker opens and calls fail fast until a reset
// delay has passed; it then lets trial calls through (half-open) and closes again once
// enough of them succeed.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned for calls rejected while the breaker is open
var ErrOpen = errors.New("circuit breaker open: ledger calls suspended")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls rejected
	StateHalfOpen              // Testing if the ledger has recovered
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

// Options configures a CircuitBreaker
type Options struct {
	// Consecutive failures that trip the breaker
	FailureThreshold int

	// Time the breaker stays open before allowing trial calls
	ResetDelay time.Duration

	// Successful trial calls needed to close the breaker again
	SuccessThreshold int

	// Called asynchronously whenever the breaker trips
	OnTrip func(reason string)

	// Answered reports errors that prove the collaborator is up and answered, such as a
	// contract revert. They count as successes, never as failures.
	Answered func(err error) bool
}

// CircuitBreaker guards calls to an external collaborator.
// It is safe for concurrent use.
type CircuitBreaker struct {
	opts Options

	mu                  sync.Mutex
	state               State
	lastTrip            time.Time
	consecutiveFailures int
	successCount        int
	lastErr             error
	now                 func() time.Time
}

// New creates a new CircuitBreaker; zero option values get sensible defaults
func New(opts Options) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = 30 * time.Second
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		opts:  opts,
		state: StateClosed,
		now:   time.Now,
	}
}

// Allow reports whether a call may proceed right now
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastTrip) < cb.opts.ResetDelay {
			return ErrOpen
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing ledger recovery")
	}
	return nil
}

// Execute runs fn if the breaker allows it and records the outcome.
// A caller abandoning its own context is not counted against the ledger, and errors the
// Answered option recognises count as successes.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := fn()
	switch {
	case err == nil:
		cb.RecordSuccess()
	case errors.Is(err, context.Canceled):
	case cb.opts.Answered != nil && cb.opts.Answered(err):
		cb.RecordSuccess()
	default:
		cb.RecordFailure(err)
	}
	return err
}

// RecordSuccess notes a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.opts.SuccessThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: ledger has recovered")
		}
	}
}

// RecordFailure notes a failed call and trips the breaker when the threshold is reached
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastErr = err
	cb.consecutiveFailures++

	switch {
	case cb.state == StateHalfOpen:
		cb.trip(fmt.Sprintf("trial call failed: %v", err))
	case cb.state == StateClosed && cb.consecutiveFailures >= cb.opts.FailureThreshold:
		cb.trip(fmt.Sprintf("%d consecutive ledger failures, last: %v", cb.consecutiveFailures, err))
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	cb.consecutiveFailures = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// Snapshot describes the breaker for status endpoints
func (cb *CircuitBreaker) Snapshot() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := map[string]interface{}{
		"state":                cb.state.String(),
		"consecutive_failures": cb.consecutiveFailures,
	}
	if !cb.lastTrip.IsZero() {
		status["last_trip"] = cb.lastTrip.UTC().Format(time.RFC3339)
	}
	if cb.lastErr != nil {
		status["last_error"] = cb.lastErr.Error()
	}
	return status
}

// trip sets the circuit breaker to open state; callers hold mu
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = cb.now()
	cb.successCount = 0
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.opts.OnTrip != nil {
		go cb.opts.OnTrip(reason)
	}
}
