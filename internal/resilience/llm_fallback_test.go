package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/bigear-ai/bigear/pkg/provider/llm"
	llmmock "github.com/bigear-ai/bigear/pkg/provider/llm/mock"
)

func drain(ch <-chan llm.Chunk) []llm.Chunk {
	var chunks []llm.Chunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestLLMFallback_Stream_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{
		Chunks: []llm.Chunk{{Text: "hello from primary"}},
	}
	secondary := &llmmock.Provider{
		Chunks: []llm.Chunk{{Text: "hello from secondary"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	ch, err := fb.Stream(context.Background(), llm.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks := drain(ch)
	if len(chunks) != 1 || chunks[0].Text != "hello from primary" {
		t.Fatalf("chunks = %+v, want single primary chunk", chunks)
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestLLMFallback_Stream_Failover(t *testing.T) {
	primary := &llmmock.Provider{
		StartErr: errors.New("primary down"),
	}
	secondary := &llmmock.Provider{
		Chunks: []llm.Chunk{{Text: "chunk1"}, {Text: "chunk2"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	ch, err := fb.Stream(context.Background(), llm.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks := drain(ch)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "chunk1" {
		t.Fatalf("chunk[0].Text = %q, want chunk1", chunks[0].Text)
	}
}

func TestLLMFallback_Stream_AllFail(t *testing.T) {
	primary := &llmmock.Provider{StartErr: errors.New("primary down")}
	secondary := &llmmock.Provider{StartErr: errors.New("secondary down")}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Stream(context.Background(), llm.Request{Prompt: "hi"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_Stream_BreakerSkipsFailingPrimary(t *testing.T) {
	primary := &llmmock.Provider{StartErr: errors.New("primary down")}
	secondary := &llmmock.Provider{
		Chunks: []llm.Chunk{{Text: "ok"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback("secondary", secondary)

	// Two failures trip the primary's breaker.
	for range 3 {
		ch, err := fb.Stream(context.Background(), llm.Request{Prompt: "hi"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		drain(ch)
	}

	// The third call must not have reached the primary.
	if primary.CallCount() != 2 {
		t.Fatalf("primary called %d times, want 2 (breaker open)", primary.CallCount())
	}
	if secondary.CallCount() != 3 {
		t.Fatalf("secondary called %d times, want 3", secondary.CallCount())
	}
}
