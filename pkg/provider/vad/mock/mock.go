// Package mock provides scriptable vad.Engine test doubles.
package mock

import (
	"sync"

	"github.com/bigear-ai/bigear/pkg/provider/vad"
)

// Compile-time assertions.
var (
	_ vad.Engine  = (*Engine)(nil)
	_ vad.Factory = (*Factory)(nil)
)

// Engine replays a scripted sequence of probabilities. When the script is
// exhausted, Fallback is returned for every further chunk.
type Engine struct {
	mu sync.Mutex

	// Script is consumed one entry per Process call.
	Script []float64

	// Fallback is returned once Script is exhausted.
	Fallback float64

	// Err, when non-nil, is returned by every Process call.
	Err error

	// Processed counts Process calls, Resets counts Reset calls.
	Processed int
	Resets    int
}

// Process implements vad.Engine.
func (e *Engine) Process(chunk []float32) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Processed++
	if e.Err != nil {
		return 0, e.Err
	}
	if len(e.Script) == 0 {
		return e.Fallback, nil
	}
	p := e.Script[0]
	e.Script = e.Script[1:]
	return p, nil
}

// Reset implements vad.Engine.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Resets++
}

// Factory hands out pre-built engines in order. When the list is exhausted it
// returns fresh zero-value Engines.
type Factory struct {
	mu      sync.Mutex
	Engines []*Engine
}

// New implements vad.Factory.
func (f *Factory) New() (vad.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Engines) == 0 {
		return &Engine{}, nil
	}
	e := f.Engines[0]
	f.Engines = f.Engines[1:]
	return e, nil
}
