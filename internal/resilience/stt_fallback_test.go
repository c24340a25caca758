package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/bigear-ai/bigear/pkg/provider/stt"
	sttmock "github.com/bigear-ai/bigear/pkg/provider/stt/mock"
)

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Result: stt.Result{Text: "primary heard this", Confidence: 0.9}}
	secondary := &sttmock.Provider{Result: stt.Result{Text: "secondary heard this", Confidence: 0.9}}

	fb := NewSTTFallback(primary, "whisper-large", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper-base", secondary)

	res, err := fb.Transcribe(context.Background(), make([]float32, 16000), "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "primary heard this" {
		t.Fatalf("text = %q, want primary result", res.Text)
	}
	if len(secondary.Calls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls))
	}
}

func TestSTTFallback_Failover(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("model crashed")}
	secondary := &sttmock.Provider{Result: stt.Result{Text: "fallback transcript", Confidence: 0.8}}

	fb := NewSTTFallback(primary, "whisper-large", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper-base", secondary)

	res, err := fb.Transcribe(context.Background(), make([]float32, 16000), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "fallback transcript" {
		t.Fatalf("text = %q, want fallback result", res.Text)
	}
	if len(primary.Calls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.Calls))
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "whisper-large", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper-base", secondary)

	_, err := fb.Transcribe(context.Background(), make([]float32, 16000), "")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
