package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] either
// failed or had an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the breaker stamped onto each backend added to a
// [FallbackGroup]. The breaker name is always overridden with the backend
// name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered list of interchangeable backends, each
// behind its own [CircuitBreaker]. Calls go to the first backend whose
// breaker admits them; on failure the next one is tried. This is how the
// runtime keeps answering when the primary LLM or STT backend degrades.
//
// Backends must all be registered before the first call; after that the
// group is safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
	logger  *slog.Logger
}

// NewFallbackGroup creates a group with primary as its first backend. More
// backends are appended with [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{
		cfg:    cfg,
		logger: slog.Default().With("component", "fallback"),
	}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend. Order matters: backends are tried in the
// order they were added.
func (fg *FallbackGroup[T]) AddFallback(name string, backend T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   backend,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// ExecuteWithResult runs fn against each backend in order until one
// succeeds. Backends with an open breaker are skipped. When every backend
// fails, the last error is wrapped in [ErrAllFailed].
//
// Package-level because Go methods cannot introduce the result type
// parameter R.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			fg.logger.Debug("backend skipped, breaker open", "backend", entry.name)
		} else {
			fg.logger.Warn("backend failed, trying next",
				"backend", entry.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
