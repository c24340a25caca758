// Package mock provides a scriptable llm.Provider test double.
package mock

import (
	"context"
	"sync"

	"github.com/bigear-ai/bigear/pkg/provider/llm"
)

// Compile-time assertion.
var _ llm.Provider = (*Provider)(nil)

// Call records one Stream invocation.
type Call struct {
	Request llm.Request
}

// Provider replays scripted chunk sequences. Each Stream call consumes the
// next entry of Script; when Script is exhausted, Chunks is replayed for every
// further call. StartErr, when non-nil, fails Stream before a channel is
// opened.
type Provider struct {
	mu sync.Mutex

	Script   [][]llm.Chunk
	Chunks   []llm.Chunk
	StartErr error

	// Block, when non-nil, is invoked before the first chunk is emitted.
	// Tests use it to hold a stream open while asserting concurrent state.
	Block func(ctx context.Context)

	Calls []Call
}

// Stream implements llm.Provider.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Request: req})
	if p.StartErr != nil {
		err := p.StartErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := p.Chunks
	if len(p.Script) > 0 {
		chunks = p.Script[0]
		p.Script = p.Script[1:]
	}
	block := p.Block
	p.mu.Unlock()

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		if block != nil {
			block(ctx)
		}
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// CallCount reports the number of Stream invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastRequest returns the most recent request, or a zero Request when Stream
// was never called.
func (p *Provider) LastRequest() llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return llm.Request{}
	}
	return p.Calls[len(p.Calls)-1].Request
}
