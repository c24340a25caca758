package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig tunes [Retry]. Zero-value fields get defaults.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first. Default: 3.
	Attempts int

	// BaseDelay is the delay before the second attempt; each subsequent delay
	// doubles, with up to 25% random jitter. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the per-attempt delay. Default: 10s.
	MaxDelay time.Duration

	// RetryIf decides whether an error is worth retrying. When nil, every
	// error is retried.
	RetryIf func(error) bool
}

// Retry runs fn up to cfg.Attempts times with exponential backoff between
// tries. It returns nil on the first success, the last error once attempts are
// exhausted, or ctx.Err() if the context is cancelled while waiting.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}

	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			jittered := delay + time.Duration(rand.Int64N(int64(delay)/4+1))
			timer := time.NewTimer(jittered)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, cfg.MaxDelay)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
