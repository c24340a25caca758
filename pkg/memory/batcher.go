package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Batcher defaults.
const (
	DefaultBatchSize  = 50
	DefaultBatchDelay = 2 * time.Second

	// batchFlushTimeout bounds one background flush.
	batchFlushTimeout = 30 * time.Second
)

// BatchWriter is the slice of [Service] the batcher flushes into.
type BatchWriter interface {
	AddBatch(ctx context.Context, items []Item) ([]string, error)
}

// Batcher accumulates memory writes and flushes them in batches, either when
// the batch fills or after a quiet delay. The audio dispatcher and screen
// loop write one record per utterance or snapshot; batching turns that into
// one store round trip every few seconds.
//
// With a [Chunker] attached, each flush first merges and re-splits the
// queued texts at semantic boundaries, per source.
type Batcher struct {
	w       BatchWriter
	maxSize int
	delay   time.Duration
	chunker *Chunker
	logger  *slog.Logger

	mu    sync.Mutex
	items []Item
	timer *time.Timer

	wg sync.WaitGroup
}

// BatcherOption configures a [Batcher].
type BatcherOption func(*Batcher)

// WithBatchSize sets how many queued items force a flush.
func WithBatchSize(n int) BatcherOption {
	return func(b *Batcher) { b.maxSize = n }
}

// WithBatchDelay sets the quiet period after which a partial batch flushes.
func WithBatchDelay(d time.Duration) BatcherOption {
	return func(b *Batcher) { b.delay = d }
}

// WithBatchChunker attaches a semantic chunker applied at flush time.
func WithBatchChunker(c *Chunker) BatcherOption {
	return func(b *Batcher) { b.chunker = c }
}

// NewBatcher creates a batcher flushing into w.
func NewBatcher(w BatchWriter, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		w:       w,
		maxSize: DefaultBatchSize,
		delay:   DefaultBatchDelay,
		logger:  slog.Default().With("component", "batcher"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.items = make([]Item, 0, b.maxSize)
	return b
}

// Add queues one record. The returned ID is always empty: IDs are assigned
// when the batch flushes. The signature matches the synchronous writer
// interface of the dispatch and screen packages so the batcher can stand in
// for the service.
func (b *Batcher) Add(_ context.Context, text, source string, extra map[string]string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, Item{Text: text, Source: source, Extra: extra})
	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return "", nil
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.timerFlush)
	} else {
		b.timer.Reset(b.delay)
	}
	return "", nil
}

// Flush forces the pending batch out immediately.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes the remaining items and waits for in-flight writes.
func (b *Batcher) Stop() {
	b.Flush()
	b.wg.Wait()
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// flushLocked must be called with b.mu held. The store write happens on a
// goroutine so callers never block on the backend.
func (b *Batcher) flushLocked() {
	if len(b.items) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := b.items
	b.items = make([]Item, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), batchFlushTimeout)
		defer cancel()

		if b.chunker != nil {
			items = b.rechunk(ctx, items)
		}
		ids, err := b.w.AddBatch(ctx, items)
		if err != nil {
			b.logger.Warn("batch memory write failed", "count", len(items), "err", err)
			return
		}
		b.logger.Debug("batch memory stored", "stored", len(ids), "submitted", len(items))
	}()
}

// rechunk rewrites the batch through the chunker, grouping consecutive items
// of the same source. Chunker failure keeps the original items.
func (b *Batcher) rechunk(ctx context.Context, items []Item) []Item {
	var out []Item
	for start := 0; start < len(items); {
		end := start + 1
		for end < len(items) && items[end].Source == items[start].Source {
			end++
		}

		texts := make([]string, 0, end-start)
		for _, item := range items[start:end] {
			texts = append(texts, item.Text)
		}
		chunks, err := b.chunker.ChunkBatch(ctx, texts)
		if err != nil {
			b.logger.Debug("chunking failed, storing unchunked", "err", err)
			out = append(out, items[start:end]...)
		} else {
			for _, chunk := range chunks {
				out = append(out, Item{Text: chunk, Source: items[start].Source})
			}
		}
		start = end
	}
	return out
}
