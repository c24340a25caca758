// Package hub fans frames out to connected subscribers. Every subscriber
// owns a bounded outbound queue, so a slow consumer drops its own frames
// without stalling the producer or its peers.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bigear-ai/bigear/internal/observe"
)

// DefaultQueueSize bounds each subscriber's outbound queue.
const DefaultQueueSize = 64

// Subscriber is one registered frame consumer.
type Subscriber struct {
	id string
	ch chan any
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string { return s.id }

// Frames returns the subscriber's receive channel. It is closed on
// Unsubscribe.
func (s *Subscriber) Frames() <-chan any { return s.ch }

// Hub is a broadcast registry. The zero value is not usable; use New.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber

	queueSize int
	metrics   *observe.Metrics
	logger    *slog.Logger
}

// Option configures a [Hub].
type Option func(*Hub)

// WithQueueSize overrides the per-subscriber queue bound.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithMetrics attaches the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		subs:      make(map[string]*Subscriber),
		queueSize: DefaultQueueSize,
		logger:    slog.Default().With("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Subscribe registers a new subscriber and returns it.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan any, h.queueSize),
	}

	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()

	h.metrics.ActiveSubscribers.Add(context.Background(), 1)
	h.logger.Debug("subscriber joined", "id", s.id)
	return s
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once. The close happens under the write lock so it cannot
// overlap an in-flight Broadcast send.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s.id]
	if ok {
		delete(h.subs, s.id)
		close(s.ch)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.ActiveSubscribers.Add(context.Background(), -1)
	h.logger.Debug("subscriber left", "id", s.id)
}

// Broadcast enqueues the frame for every current subscriber. Subscribers
// whose queue is full miss this frame; nobody blocks. Sends are
// non-blocking, so holding the read lock across the loop is cheap.
func (h *Hub) Broadcast(frame any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		select {
		case s.ch <- frame:
		default:
			h.logger.Warn("subscriber queue full, dropping frame", "id", s.id)
		}
	}
}

// Send enqueues the frame for a single subscriber, same drop policy as
// Broadcast.
func (h *Hub) Send(s *Subscriber, frame any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	select {
	case s.ch <- frame:
	default:
		h.logger.Warn("subscriber queue full, dropping frame", "id", s.id)
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
