package resilience

import (
	"errors"
	"testing"
	"time"
)

func newStringGroup(maxFailures int, resetTimeout time.Duration) *FallbackGroup[string] {
	fg := NewFallbackGroup("gemini", "gemini", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  maxFailures,
			ResetTimeout: resetTimeout,
		},
	})
	fg.AddFallback("ollama", "ollama")
	return fg
}

func TestFallbackGroup_PrimaryWins(t *testing.T) {
	fg := newStringGroup(3, 0)

	got, err := ExecuteWithResult(fg, func(backend string) (string, error) {
		return backend, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "gemini" {
		t.Fatalf("served by %q, want gemini", got)
	}
}

func TestFallbackGroup_FailsOverToNextBackend(t *testing.T) {
	fg := newStringGroup(3, 0)

	got, err := ExecuteWithResult(fg, func(backend string) (string, error) {
		if backend == "gemini" {
			return "", errBackend
		}
		return backend, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "ollama" {
		t.Fatalf("served by %q, want ollama", got)
	}
}

func TestFallbackGroup_AllBackendsFail(t *testing.T) {
	fg := newStringGroup(3, 0)

	_, err := ExecuteWithResult(fg, func(string) (string, error) {
		return "", errBackend
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerIsSkipped(t *testing.T) {
	fg := newStringGroup(2, time.Hour)

	// Trip the primary's breaker while the fallback keeps serving.
	for i := 0; i < 2; i++ {
		_, err := ExecuteWithResult(fg, func(backend string) (string, error) {
			if backend == "gemini" {
				return "", errBackend
			}
			return backend, nil
		})
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	var tried []string
	got, err := ExecuteWithResult(fg, func(backend string) (string, error) {
		tried = append(tried, backend)
		return backend, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "ollama" {
		t.Fatalf("served by %q, want ollama while gemini's breaker is open", got)
	}
	if len(tried) != 1 || tried[0] != "ollama" {
		t.Fatalf("tried = %v, want only ollama", tried)
	}
}

func TestExecuteWithResult_ResultTypeDiffersFromBackendType(t *testing.T) {
	fg := NewFallbackGroup(3, "small", FallbackConfig{})
	fg.AddFallback("large", 7)

	got, err := ExecuteWithResult(fg, func(n int) ([]int, error) {
		if n == 3 {
			return nil, errBackend
		}
		return []int{n, n}, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if len(got) != 2 || got[0] != 7 {
		t.Fatalf("got = %v, want [7 7]", got)
	}
}
