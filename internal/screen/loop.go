package screen

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bigear-ai/bigear/internal/observe"
	"github.com/bigear-ai/bigear/pkg/provider/ocr"
)

// Defaults for the capture loop.
const (
	DefaultCaptureInterval = time.Second
	DefaultHashMatchSleep  = 500 * time.Millisecond
	DefaultStableCount     = 2
	DefaultMinTextLength   = 50
)

// Capturer grabs one frame of the primary display.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
}

// MemoryWriter is the slice of the memory service the loop needs.
type MemoryWriter interface {
	Add(ctx context.Context, text, source string, extra map[string]string) (string, error)
}

// Snapshot is one self-consistent view of the screen: image, its JPEG
// rendering, and the OCR text, all from the same capture cycle. Readers get
// the whole struct atomically.
type Snapshot struct {
	Image     image.Image
	JPEG      []byte
	Text      string
	Timestamp time.Time
}

// Config tunes a [Loop]. Zero-value fields get defaults.
type Config struct {
	CaptureInterval time.Duration
	HashMatchSleep  time.Duration

	// StableCount is how many consecutive identical OCR readings make text
	// "stable" enough to persist.
	StableCount int

	// MinTextLength is the minimum stable-text length worth persisting.
	MinTextLength int

	// PhashGrid is the side length of the perceptual-hash downscale grid.
	PhashGrid int
}

func (c *Config) applyDefaults() {
	if c.CaptureInterval <= 0 {
		c.CaptureInterval = DefaultCaptureInterval
	}
	if c.HashMatchSleep <= 0 {
		c.HashMatchSleep = DefaultHashMatchSleep
	}
	if c.StableCount <= 0 {
		c.StableCount = DefaultStableCount
	}
	if c.MinTextLength <= 0 {
		c.MinTextLength = DefaultMinTextLength
	}
	if c.PhashGrid < 2 {
		c.PhashGrid = DefaultPhashGrid
	}
}

// Loop runs the screen pipeline: capture, hash-debounce, OCR, stability gate,
// memory persist. A single goroutine writes; any number of readers call
// [Loop.Latest].
type Loop struct {
	cfg       Config
	capturer  Capturer
	extractor ocr.Provider
	mem       MemoryWriter
	recording func() bool
	metrics   *observe.Metrics
	logger    *slog.Logger

	latest atomic.Pointer[Snapshot]

	// loop-goroutine state
	lastHash       Phash
	lastText       string
	lastStoredText string
	stableCount    int

	// onStable, when set, is invoked after each persisted stable text.
	onStable func(text string)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// Option configures a [Loop].
type Option func(*Loop)

// WithMemory attaches the long-term memory writer.
func WithMemory(mem MemoryWriter) Option {
	return func(l *Loop) { l.mem = mem }
}

// WithRecordingFunc sets the predicate consulted before persisting stable text.
func WithRecordingFunc(fn func() bool) Option {
	return func(l *Loop) { l.recording = fn }
}

// WithMetrics attaches the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithOnStable sets a callback invoked with each newly persisted stable text.
func WithOnStable(fn func(text string)) Option {
	return func(l *Loop) { l.onStable = fn }
}

// WithClock overrides the time source and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) Option {
	return func(l *Loop) {
		l.now = now
		l.sleep = sleep
	}
}

// NewLoop creates a screen loop. Call Run to start it.
func NewLoop(cfg Config, capturer Capturer, extractor ocr.Provider, opts ...Option) *Loop {
	cfg.applyDefaults()
	l := &Loop{
		cfg:       cfg,
		capturer:  capturer,
		extractor: extractor,
		recording: func() bool { return false },
		logger:    slog.Default().With("component", "screen_loop"),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	return l
}

// Latest returns the most recent snapshot, or nil before the first capture.
// Image, JPEG and Text always come from the same cycle.
func (l *Loop) Latest() *Snapshot {
	return l.latest.Load()
}

// Run executes capture cycles until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for ctx.Err() == nil {
		l.sleep(ctx, l.cycle(ctx))
	}
}

// cycle performs one iteration and returns how long to sleep before the next.
func (l *Loop) cycle(ctx context.Context) time.Duration {
	img, err := l.capturer.Capture(ctx)
	if err != nil {
		l.logger.Warn("screen capture failed", "err", err)
		return l.cfg.CaptureInterval
	}

	hash := HashImage(img, l.cfg.PhashGrid)
	if hash.Equal(l.lastHash) {
		// Visually unchanged; skip OCR and come back sooner.
		return l.cfg.HashMatchSleep
	}
	l.lastHash = hash

	snap := &Snapshot{
		Image:     img,
		JPEG:      encodeJPEG(img, l.logger),
		Timestamp: l.now(),
	}

	start := time.Now()
	text, err := l.extractor.ExtractText(ctx, img)
	l.metrics.OCRDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		l.logger.Warn("ocr failed, keeping previous text", "err", err)
		// Publish the new image with the previous text so image and text
		// never come from the same failed extraction.
		snap.Text = l.lastText
		l.latest.Store(snap)
		return l.cfg.CaptureInterval
	}

	if text == "" {
		// Nothing recognised; keep the previous text alongside the new image.
		snap.Text = l.lastText
		l.latest.Store(snap)
		return l.cfg.CaptureInterval
	}

	if text == l.lastText {
		l.stableCount++
	} else {
		l.lastText = text
		l.stableCount = 1
	}

	snap.Text = text
	l.latest.Store(snap)

	if l.shouldPersist(text) {
		l.persist(ctx, text)
	}
	return l.cfg.CaptureInterval
}

// shouldPersist applies the stability gate: recording on, text stable for
// enough cycles, different from the last stored value, and long enough.
func (l *Loop) shouldPersist(text string) bool {
	return l.mem != nil &&
		l.recording() &&
		l.stableCount >= l.cfg.StableCount &&
		text != l.lastStoredText &&
		len(text) >= l.cfg.MinTextLength
}

func (l *Loop) persist(ctx context.Context, text string) {
	id, err := l.mem.Add(ctx, text, "screen", nil)
	if err != nil {
		l.logger.Warn("failed to persist screen text", "err", err)
		return
	}
	l.lastStoredText = text
	l.stableCount = 0
	l.metrics.RecordMemoryAdd(ctx, "screen", 1)
	l.logger.Debug("stable screen text persisted", "id", id, "chars", len(text))
	if l.onStable != nil {
		l.onStable(text)
	}
}

func encodeJPEG(img image.Image, logger *slog.Logger) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		logger.Warn("jpeg encode failed", "err", err)
		return nil
	}
	return buf.Bytes()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
