// Package mock provides a scriptable stt.Provider test double.
package mock

import (
	"context"
	"sync"

	"github.com/bigear-ai/bigear/pkg/provider/stt"
)

// Compile-time assertion.
var _ stt.Provider = (*Provider)(nil)

// Call records the arguments of one Transcribe invocation.
type Call struct {
	Samples  int
	Language string
}

// Provider returns scripted results and records every call. It also tracks
// the number of in-flight Transcribe calls so tests can assert single-flight
// serialization.
type Provider struct {
	mu sync.Mutex

	// Results is consumed one entry per call; when exhausted, Result is
	// returned.
	Results []stt.Result
	Result  stt.Result
	Err     error

	// Delay, when set, is how long each call blocks (via the Block func).
	Block func()

	Calls []Call

	inFlight    int
	maxInFlight int
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(_ context.Context, pcm []float32, language string) (stt.Result, error) {
	if len(pcm) == 0 {
		return stt.Result{}, stt.ErrEmptyInput
	}

	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.Calls = append(p.Calls, Call{Samples: len(pcm), Language: language})
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		block()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--

	if p.Err != nil {
		return stt.Result{}, p.Err
	}
	if len(p.Results) > 0 {
		r := p.Results[0]
		p.Results = p.Results[1:]
		return r, nil
	}
	return p.Result, nil
}

// MaxInFlight reports the highest number of concurrent Transcribe calls seen.
func (p *Provider) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}
