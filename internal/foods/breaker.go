package foods

import (
	"fmt"
	"sync"
	"time"
)

// breakerState is the circuit breaker condition.
type breakerState int

const (
	stateClosed breakerState = iota
	stateHalfOpen
	stateOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateHalfOpen:
		return "half-open"
	case stateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned for calls rejected while the circuit is open.
// Callers treat it like any other provider failure.
type ErrBreakerOpen struct {
	Name string
}

func (e *ErrBreakerOpen) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// circuitBreaker guards an unreliable provider. It opens after a run of
// consecutive failures, rejects calls for a cool-down period, then lets a
// limited number of probes through before closing again.
type circuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	coolDown         time.Duration

	mu                   sync.Mutex
	state                breakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	nextAttempt          time.Time
	now                  func() time.Time
}

func newCircuitBreaker(name string, failureThreshold, successThreshold int, coolDown time.Duration) *circuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if coolDown <= 0 {
		coolDown = 30 * time.Second
	}
	return &circuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		coolDown:         coolDown,
		state:            stateClosed,
		now:              time.Now,
	}
}

// Execute runs fn under breaker protection.
func (cb *circuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if cb.now().After(cb.nextAttempt) {
			cb.state = stateHalfOpen
			cb.consecutiveSuccesses = 0
			return nil
		}
		return &ErrBreakerOpen{Name: cb.name}
	}
	return nil
}

func (cb *circuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if ok {
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses++
		if cb.state == stateHalfOpen && cb.consecutiveSuccesses >= cb.successThreshold {
			cb.state = stateClosed
		}
		return
	}

	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++
	switch cb.state {
	case stateClosed:
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.trip()
		}
	case stateHalfOpen:
		// A failed probe reopens immediately.
		cb.trip()
	}
}

func (cb *circuitBreaker) trip() {
	cb.state = stateOpen
	cb.nextAttempt = cb.now().Add(cb.coolDown)
}
