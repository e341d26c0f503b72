package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] either
// failed or had an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-backend circuit breaker created for
// each entry of a [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// backend pairs one provider value with its dedicated breaker.
type backend[T any] struct {
	name    string
	impl    T
	breaker *CircuitBreaker
}

// FallbackGroup orders a primary and zero or more fallback backends of the
// same kind. Calls go to the first backend whose breaker admits them and
// whose call succeeds. Register all fallbacks before the first call;
// execution itself is safe for concurrent use.
type FallbackGroup[T any] struct {
	backends []backend[T]
	cfg      FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first backend.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a backend. Backends are tried in registration order,
// after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, impl T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.backends = append(fg.backends, backend[T]{
		name:    name,
		impl:    impl,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Primary returns the group's first backend. Useful for static metadata
// that must not flip between backends.
func (fg *FallbackGroup[T]) Primary() T {
	return fg.backends[0].impl
}

// Execute tries fn against each backend in order until one succeeds.
// Returns [ErrAllFailed] wrapping the last error when none does.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each backend in order until one
// succeeds, returning its result. A package-level function because Go has
// no method-level type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.backends {
		b := &fg.backends[i]

		var result R
		err := b.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(b.impl)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", b.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", b.name, "error", err)
		}
	}

	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
