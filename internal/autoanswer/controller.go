// Package autoanswer streams unprompted answers for questions detected in
// the transcript, gated by a cooldown and the presence of subscribers.
package autoanswer

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bigear-ai/bigear/internal/hub"
	"github.com/bigear-ai/bigear/internal/observe"
)

// Defaults for the controller.
const (
	DefaultCooldown       = 10 * time.Second
	DefaultContextWindow  = 120 * time.Second
	DefaultScreenTruncate = 2000
)

// Answerer is the slice of the analysis layer the controller needs.
type Answerer interface {
	Analyze(ctx context.Context, contextText, userQuery string, imageJPEG []byte) (<-chan string, error)
}

// Broadcaster is the slice of the hub the controller needs.
type Broadcaster interface {
	Broadcast(frame any)
	SubscriberCount() int
}

// Config tunes a [Controller]. Zero-value fields get defaults.
type Config struct {
	// Enabled sets the initial toggle state.
	Enabled bool

	// Cooldown is the minimum wall time between two fired answers.
	Cooldown time.Duration

	// ContextWindow is how far back the transcript context reaches.
	ContextWindow time.Duration

	// ScreenTruncate caps the screen text included in the context.
	ScreenTruncate int
}

// Controller owns the auto-answer trigger path. Gating (toggle, subscriber
// count, cooldown) is synchronous and race-free; the answer itself streams
// within the Trigger call.
type Controller struct {
	answerer Answerer
	hub      Broadcaster
	cfg      Config

	// transcriptFn renders the recent transcript for the given window.
	transcriptFn func(window time.Duration) string
	// screenTextFn returns the latest stable screen text, or "".
	screenTextFn func() string

	enabled   atomic.Bool
	lastFired atomic.Int64 // unix nanos, 0 means never

	now     func() time.Time
	metrics *observe.Metrics
	logger  *slog.Logger
}

// Option configures a [Controller].
type Option func(*Controller)

// WithTranscriptFunc sets the transcript context source.
func WithTranscriptFunc(fn func(window time.Duration) string) Option {
	return func(c *Controller) { c.transcriptFn = fn }
}

// WithScreenTextFunc sets the screen context source.
func WithScreenTextFunc(fn func() string) Option {
	return func(c *Controller) { c.screenTextFn = fn }
}

// WithMetrics attaches the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller streaming through the given hub.
func New(answerer Answerer, broadcaster Broadcaster, cfg Config, opts ...Option) *Controller {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.ScreenTruncate <= 0 {
		cfg.ScreenTruncate = DefaultScreenTruncate
	}
	c := &Controller{
		answerer: answerer,
		hub:      broadcaster,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default().With("component", "autoanswer"),
	}
	c.enabled.Store(cfg.Enabled)
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// SetEnabled toggles auto-answering.
func (c *Controller) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
	c.logger.Info("auto-answer toggled", "enabled", enabled)
}

// Enabled reports the current toggle state.
func (c *Controller) Enabled() bool { return c.enabled.Load() }

// Trigger streams an answer for the detected question, bracketed by
// auto_start and auto_done frames. It returns false without any LLM call
// when the feature is off, nobody is subscribed, or the cooldown has not
// elapsed. Callers run it on its own goroutine; it blocks per token.
func (c *Controller) Trigger(ctx context.Context, question string) bool {
	if !c.enabled.Load() {
		return false
	}
	if c.hub.SubscriberCount() == 0 {
		return false
	}

	now := c.now().UnixNano()
	last := c.lastFired.Load()
	if last != 0 && now-last < int64(c.cfg.Cooldown) {
		c.metrics.RecordAutoAnswer(ctx, "cooldown")
		return false
	}
	// CAS so concurrent triggers cannot both fire inside one cooldown.
	if !c.lastFired.CompareAndSwap(last, now) {
		return false
	}

	c.logger.Info("auto-answering question", "question", question)
	c.hub.Broadcast(hub.AutoStart(question))
	// The done frame goes out on every path, success or not.
	defer c.hub.Broadcast(hub.AutoDone(question))

	stream, err := c.answerer.Analyze(ctx, c.contextText(), "Answer this question concisely: "+question, nil)
	if err != nil {
		c.logger.Error("auto-answer failed to start", "err", err)
		c.metrics.RecordAutoAnswer(ctx, "error")
		return true
	}

	for {
		select {
		case token, ok := <-stream:
			if !ok {
				c.metrics.RecordAutoAnswer(ctx, "fired")
				return true
			}
			c.hub.Broadcast(hub.AutoChunk(question, token))
		case <-ctx.Done():
			c.metrics.RecordAutoAnswer(ctx, "error")
			return true
		}
	}
}

// contextText assembles transcript and screen context for the answer
// prompt.
func (c *Controller) contextText() string {
	var parts []string
	if c.transcriptFn != nil {
		if t := strings.TrimSpace(c.transcriptFn(c.cfg.ContextWindow)); t != "" {
			parts = append(parts, "Recent conversation:\n"+t)
		}
	}
	if c.screenTextFn != nil {
		if s := strings.TrimSpace(c.screenTextFn()); s != "" {
			if len(s) > c.cfg.ScreenTruncate {
				s = s[:c.cfg.ScreenTruncate]
			}
			parts = append(parts, "Screen:\n"+s)
		}
	}
	if len(parts) == 0 {
		return "No context available."
	}
	return strings.Join(parts, "\n\n")
}
