// Package circuitbreaker protects read-only RPC endpoints from being hammered
// while they are failing. Each endpoint has its own breaker, keyed by URL.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of a circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, no new calls allowed
	StateHalfOpen              // Testing if the endpoint has recovered
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
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrOpen is returned by Allow while the endpoint's circuit is open
var ErrOpen = errors.New("circuit breaker open")

const (
	DefaultFailureThreshold = 5
	DefaultResetDelay       = 30 * time.Second
	DefaultSuccessThreshold = 1
)

// CircuitBreaker tracks consecutive failures of a single endpoint
type CircuitBreaker struct {
	state State

	// Timestamp of the last circuit trip
	lastTrip time.Time

	// Consecutive failures while closed
	failures int

	// Consecutive successes while half-open
	successCount int
}

// Group holds one breaker per key. It is safe for concurrent use.
type Group struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker

	// Consecutive failures that trip a closed circuit
	failureThreshold int

	// Duration before a reset attempt
	resetDelay time.Duration

	// Successful calls needed in half-open state to close the circuit
	successThreshold int

	// Event callback for monitoring
	onTripCallback func(key string, failures int)

	now func() time.Time
}

// New creates a Group that trips after failureThreshold consecutive failures
func New(failureThreshold int) *Group {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	return &Group{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		resetDelay:       DefaultResetDelay,
		successThreshold: DefaultSuccessThreshold,
		now:              time.Now,
	}
}

// WithResetDelay sets a custom reset delay and returns the group
func (g *Group) WithResetDelay(delay time.Duration) *Group {
	g.resetDelay = delay
	return g
}

// WithSuccessThreshold sets the number of successful calls needed to close a circuit
func (g *Group) WithSuccessThreshold(threshold int) *Group {
	if threshold > 0 {
		g.successThreshold = threshold
	}
	return g
}

// WithTripCallback sets a callback invoked (asynchronously) when a circuit trips
func (g *Group) WithTripCallback(callback func(key string, failures int)) *Group {
	g.onTripCallback = callback
	return g
}

func (g *Group) breaker(key string) *CircuitBreaker {
	cb, ok := g.breakers[key]
	if !ok {
		cb = &CircuitBreaker{state: StateClosed}
		g.breakers[key] = cb
	}
	return cb
}

// Allow reports whether a call to key may proceed. An open circuit whose
// reset delay has passed moves to half-open and lets the call through.
func (g *Group) Allow(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb := g.breaker(key)
	if cb.state != StateOpen {
		return nil
	}

	if g.now().Sub(cb.lastTrip) > g.resetDelay {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.WithField("endpoint", key).Info("Circuit breaker half-open: testing endpoint recovery")
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOpen, key)
}

// Success records a successful call to key
func (g *Group) Success(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb := g.breaker(key)
	cb.failures = 0

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= g.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.WithField("endpoint", key).Info("Circuit breaker closed: endpoint has recovered")
		}
	}
}

// Failure records a failed call to key, tripping the circuit at the threshold.
// Any failure while half-open trips it again immediately.
func (g *Group) Failure(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb := g.breaker(key)
	switch cb.state {
	case StateHalfOpen:
		g.trip(key, cb)
	case StateClosed:
		cb.failures++
		if cb.failures >= g.failureThreshold {
			g.trip(key, cb)
		}
	}
}

// State returns the current state for key
func (g *Group) State(key string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[key]; ok {
		return cb.state
	}
	return StateClosed
}

// Reset forcibly closes every circuit
func (g *Group) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.breakers = make(map[string]*CircuitBreaker)
	logrus.Info("Circuit breakers manually reset to closed state")
}

// trip must be called with g.mu held
func (g *Group) trip(key string, cb *CircuitBreaker) {
	failures := cb.failures
	cb.state = StateOpen
	cb.lastTrip = g.now()
	cb.failures = 0
	cb.successCount = 0
	logrus.WithField("endpoint", key).Warnf("Circuit breaker tripped after %d consecutive failures", failures)

	if g.onTripCallback != nil {
		go g.onTripCallback(key, failures)
	}
}
