// Package resilience protects the embedding and chat backends behind the
// pipeline from cascading failures.
//
// [CircuitBreaker] is a classic three-state breaker (closed, open,
// half-open). [FallbackGroup] composes several backends of the same kind
// with per-entry breakers, so a local Ollama that stops answering is
// bypassed in favour of a configured hosted fallback instead of failing a
// whole ingest run. [EmbeddingsFallback] and [ChatFallback] wrap the two
// provider interfaces.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker
// rejects the call without running it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until the reset
	// timeout has elapsed since the failure that tripped the breaker.
	StateOpen

	// StateHalfOpen admits a limited number of probe calls. Enough
	// consecutive successes close the breaker; any failure re-opens it.
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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields get defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is how many consecutive failures trip a closed breaker.
	// Default 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before
	// admitting probes. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget: how many half-open calls are
	// admitted, and how many must succeed to close. Default 3.
	HalfOpenMax int
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	probes   int       // probes admitted this half-open period
	okProbes int       // probes that succeeded this half-open period
	lastFail time.Time // reset clock runs from here
}

// NewCircuitBreaker returns a closed breaker with cfg's settings, filling
// defaults for zero fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn unless the breaker rejects it, and feeds the outcome back
// into the breaker's state. The returned error is fn's own error, or
// [ErrCircuitOpen] when fn never ran.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	callErr := fn()
	cb.observe(probe, callErr)
	return callErr
}

// admit decides whether the next call may proceed, transitioning
// open→half-open when the reset timeout has elapsed. It reports whether
// the admitted call counts against the probe budget.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFail) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.okProbes = 0
		slog.Info("circuit breaker transitioning to half-open", "name", cb.name)
	}

	if cb.state == StateHalfOpen {
		if cb.probes >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

// observe records the outcome of an admitted call.
func (cb *CircuitBreaker) observe(probe bool, callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case callErr == nil && probe:
		cb.okProbes++
		if cb.okProbes >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			slog.Info("circuit breaker closed after successful probes", "name", cb.name)
		}

	case callErr == nil:
		cb.failures = 0

	case probe:
		// One failed probe re-opens and restarts the reset clock.
		cb.state = StateOpen
		cb.lastFail = time.Now()
		cb.failures = cb.maxFailures
		slog.Warn("circuit breaker re-opened from half-open", "name", cb.name)

	default:
		cb.failures++
		cb.lastFail = time.Now()
		if cb.state == StateClosed && cb.failures >= cb.maxFailures {
			cb.state = StateOpen
			slog.Warn("circuit breaker opened",
				"name", cb.name,
				"consecutive_failures", cb.failures)
		}
	}
}

// State returns the breaker's current state. An open breaker whose reset
// timeout has elapsed reports [StateHalfOpen]; the stored transition
// happens on the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFail) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.okProbes = 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
