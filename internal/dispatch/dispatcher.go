package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bigear-ai/bigear/internal/observe"
)

// DefaultWordThreshold is the minimum word count for a transcript to be worth
// persisting to long-term memory.
const DefaultWordThreshold = 4

// DefaultQueueSize bounds the ingest queue between the audio supervisor and
// the dispatcher loop.
const DefaultQueueSize = 256

// MemoryWriter is the slice of the memory service the dispatcher needs.
type MemoryWriter interface {
	Add(ctx context.Context, text, source string, extra map[string]string) (string, error)
}

// Config tunes a [Dispatcher]. Zero-value fields get defaults.
type Config struct {
	RingCapacity      int
	WordThreshold     int
	MinQuestionLength int

	// QuestionSources lists the source tags whose questions trigger the
	// auto-answer path. Typically just "system": the loopback carries the
	// other party, the microphone carries the user.
	QuestionSources []string

	QueueSize int
}

// Dispatcher consumes the serialized stream of transcribed utterances and
// routes each one: ring append, optional memory persist, question detection,
// live broadcast. Items are ingested via [Dispatcher.Enqueue] from the audio
// threads and processed by a single [Dispatcher.Run] loop.
type Dispatcher struct {
	cfg      Config
	ring     *Ring
	detector Detector
	mem      MemoryWriter
	metrics  *observe.Metrics
	logger   *slog.Logger

	// recording gates memory persistence; owned by the monitor.
	recording func() bool

	onTranscript func(text, source string)
	onQuestion   func(question string)

	mu      sync.RWMutex
	sources []string

	queue chan Item
	now   func() time.Time
}

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithMemory attaches the long-term memory writer. Without it, transcripts
// are never persisted.
func WithMemory(mem MemoryWriter) Option {
	return func(d *Dispatcher) { d.mem = mem }
}

// WithRecordingFunc sets the predicate consulted before each memory persist.
func WithRecordingFunc(fn func() bool) Option {
	return func(d *Dispatcher) { d.recording = fn }
}

// WithOnTranscript sets the live-broadcast callback invoked for every item.
func WithOnTranscript(fn func(text, source string)) Option {
	return func(d *Dispatcher) { d.onTranscript = fn }
}

// WithOnQuestion sets the callback invoked when an other-party question is
// detected.
func WithOnQuestion(fn func(question string)) Option {
	return func(d *Dispatcher) { d.onQuestion = fn }
}

// WithMetrics attaches the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher. Run must be called for enqueued items to be
// processed.
func New(cfg Config, opts ...Option) *Dispatcher {
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = DefaultRingCapacity
	}
	if cfg.WordThreshold <= 0 {
		cfg.WordThreshold = DefaultWordThreshold
	}
	if cfg.MinQuestionLength <= 0 {
		cfg.MinQuestionLength = DefaultMinQuestionLength
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if len(cfg.QuestionSources) == 0 {
		cfg.QuestionSources = []string{"system"}
	}

	d := &Dispatcher{
		cfg:       cfg,
		ring:      NewRing(cfg.RingCapacity),
		detector:  Detector{MinLength: cfg.MinQuestionLength},
		logger:    slog.Default().With("component", "dispatcher"),
		recording: func() bool { return false },
		sources:   slices.Clone(cfg.QuestionSources),
		queue:     make(chan Item, cfg.QueueSize),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Ring exposes the recent-transcript buffer for context assembly.
func (d *Dispatcher) Ring() *Ring {
	return d.ring
}

// SetQuestionSources replaces the other-party source set at runtime.
func (d *Dispatcher) SetQuestionSources(sources []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = slices.Clone(sources)
}

// Enqueue hands a transcribed utterance to the dispatcher loop. It never
// blocks: when the queue is full the item is dropped with a warning, so a
// stalled consumer cannot back up the audio threads.
func (d *Dispatcher) Enqueue(text, source string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	item := Item{
		Text:      text,
		Source:    source,
		Timestamp: d.now(),
		Words:     len(strings.Fields(text)),
	}
	select {
	case d.queue <- item:
	default:
		d.logger.Warn("transcript queue full, dropping item", "source", source)
	}
}

// Run processes enqueued items until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-d.queue:
			d.process(ctx, item)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, item Item) {
	d.ring.Append(item)
	d.metrics.RecordTranscript(ctx, item.Source)

	if d.mem != nil && d.recording() && item.Words >= d.cfg.WordThreshold {
		d.persist(ctx, item)
	}

	if d.detector.IsQuestion(item.Text) && d.questionSource(item.Source) {
		d.metrics.RecordQuestion(ctx, item.Source)
		d.logger.Debug("question detected", "source", item.Source, "text", item.Text)
		if d.onQuestion != nil {
			d.onQuestion(item.Text)
		}
	}

	if d.onTranscript != nil {
		d.onTranscript(item.Text, item.Source)
	}
}

// persist writes the item to long-term memory tagged with its origin. Memory
// failures are logged and the pipeline continues.
func (d *Dispatcher) persist(ctx context.Context, item Item) {
	text := fmt.Sprintf("%s: %s", strings.ToUpper(item.Source), item.Text)
	id, err := d.mem.Add(ctx, text, "audio", nil)
	if err != nil {
		d.logger.Warn("failed to persist transcript", "source", item.Source, "err", err)
		return
	}
	d.metrics.RecordMemoryAdd(ctx, "audio", 1)
	d.logger.Debug("transcript persisted", "id", id, "source", item.Source)
}

func (d *Dispatcher) questionSource(source string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Contains(d.sources, source)
}
