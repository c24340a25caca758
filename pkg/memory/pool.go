package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPoolSize is the default number of pooled store clients.
const DefaultPoolSize = 3

// DefaultAcquireTimeout bounds how long Acquire waits for a pooled client
// before falling back to an ephemeral one.
const DefaultAcquireTimeout = 2 * time.Second

// Factory creates a new store client. Called once per pool slot and once per
// ephemeral fallback client.
type Factory func(ctx context.Context) (VectorStore, error)

// Pool is a bounded pool of VectorStore clients. Every Service call acquires
// a client, uses it, and releases it; when all clients are busy past the
// acquire timeout, an ephemeral client is created instead and closed on
// release.
type Pool struct {
	factory        Factory
	clients        chan VectorStore
	acquireTimeout time.Duration
	logger         *slog.Logger
}

// PoolOption is a functional option for NewPool.
type PoolOption func(*Pool)

// WithAcquireTimeout overrides DefaultAcquireTimeout.
func WithAcquireTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.acquireTimeout = d }
}

// WithPoolLogger sets the logger used for exhaustion warnings.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates size clients eagerly via factory. size <= 0 selects
// DefaultPoolSize.
func NewPool(ctx context.Context, factory Factory, size int, opts ...PoolOption) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{
		factory:        factory,
		clients:        make(chan VectorStore, size),
		acquireTimeout: DefaultAcquireTimeout,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	for i := 0; i < size; i++ {
		client, err := factory(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("memory pool: create client %d: %w", i, err)
		}
		p.clients <- client
	}
	return p, nil
}

// Acquire returns a client and a release function. When the pool is exhausted
// past the acquire timeout, an ephemeral client is created, a warning is
// logged, and release closes it instead of returning it to the pool.
func (p *Pool) Acquire(ctx context.Context) (VectorStore, func(), error) {
	select {
	case client := <-p.clients:
		return client, func() { p.clients <- client }, nil
	default:
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case client := <-p.clients:
		return client, func() { p.clients <- client }, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-timer.C:
		p.logger.Warn("memory pool exhausted, creating ephemeral client",
			"timeout", p.acquireTimeout, "err", ErrPoolExhausted)
		client, err := p.factory(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("memory pool: ephemeral client: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	}
}

// Close closes all idle pooled clients. Callers must finish in-flight work
// before calling Close.
func (p *Pool) Close() {
	for {
		select {
		case client := <-p.clients:
			_ = client.Close()
		default:
			return
		}
	}
}
