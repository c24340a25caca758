// Package energy implements a dependency-free VAD engine based on RMS energy
// with hysteresis. It is the default engine when no model-backed detector is
// configured and is deliberately conservative: a few consecutive loud chunks
// are required before the probability crosses the speech threshold, which
// suppresses single-chunk pops and key clicks.
package energy

import (
	"math"

	"github.com/bigear-ai/bigear/pkg/provider/vad"
)

// Compile-time assertions.
var (
	_ vad.Engine  = (*Engine)(nil)
	_ vad.Factory = (*Factory)(nil)
)

const (
	// defaultNoiseFloor is the RMS level treated as certain silence.
	defaultNoiseFloor = 0.005

	// defaultSpeechRMS is the RMS level treated as certain speech.
	defaultSpeechRMS = 0.04

	// defaultConfirmChunks is the number of consecutive energetic chunks
	// needed before the reported probability saturates.
	defaultConfirmChunks = 3
)

// Engine maps chunk RMS energy onto a 0 to 1 speech probability. Consecutive
// energetic chunks raise the confidence; silence decays it immediately.
type Engine struct {
	noiseFloor    float64
	speechRMS     float64
	confirmChunks int

	consecutive int
}

// Option configures an Engine or Factory.
type Option func(*Engine)

// WithNoiseFloor sets the RMS level below which a chunk is certain silence.
func WithNoiseFloor(rms float64) Option {
	return func(e *Engine) { e.noiseFloor = rms }
}

// WithSpeechRMS sets the RMS level at which a chunk alone is certain speech.
func WithSpeechRMS(rms float64) Option {
	return func(e *Engine) { e.speechRMS = rms }
}

// WithConfirmChunks sets how many consecutive energetic chunks are required
// before the probability saturates at its raw energy value.
func WithConfirmChunks(n int) Option {
	return func(e *Engine) { e.confirmChunks = n }
}

// New creates an energy Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		noiseFloor:    defaultNoiseFloor,
		speechRMS:     defaultSpeechRMS,
		confirmChunks: defaultConfirmChunks,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process implements vad.Engine.
func (e *Engine) Process(chunk []float32) (float64, error) {
	if len(chunk) != vad.ChunkSize {
		return 0, vad.ErrBadChunk
	}

	rms := rms(chunk)
	if rms <= e.noiseFloor {
		e.consecutive = 0
		return 0, nil
	}

	// Linear ramp between the noise floor and the certain-speech level.
	raw := (rms - e.noiseFloor) / (e.speechRMS - e.noiseFloor)
	if raw > 1 {
		raw = 1
	}

	e.consecutive++
	confirm := float64(e.consecutive) / float64(e.confirmChunks)
	if confirm > 1 {
		confirm = 1
	}
	return raw * confirm, nil
}

// Reset implements vad.Engine.
func (e *Engine) Reset() {
	e.consecutive = 0
}

func rms(chunk []float32) float64 {
	var sum float64
	for _, s := range chunk {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(chunk)))
}

// Factory creates independent energy Engines sharing one option set.
type Factory struct {
	opts []Option
}

// NewFactory creates a Factory that applies opts to every Engine it makes.
func NewFactory(opts ...Option) *Factory {
	return &Factory{opts: opts}
}

// New implements vad.Factory.
func (f *Factory) New() (vad.Engine, error) {
	return New(f.opts...), nil
}
