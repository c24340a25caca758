// Package vad defines the Engine interface for voice activity detection
// backends.
//
// A VAD engine wraps a frame-level speech detector (Silero VAD served over a
// sidecar, WebRTC VAD, or the built-in energy detector) and returns a speech
// probability for each fixed-size PCM chunk. The device listener feeds it
// 512-sample float32 mono chunks at 16 kHz and gates its speech buffer on the
// returned probability.
//
// Engines are stateful: most models smooth probabilities across consecutive
// chunks, so a single Engine instance must only be used for one audio stream.
// Reset clears that internal state between utterances.
package vad

import "errors"

// ChunkSize is the number of samples per chunk expected by Process.
// Matches the Silero VAD frame size at 16 kHz.
const ChunkSize = 512

// ErrBadChunk is returned by Process when the supplied chunk does not have
// exactly ChunkSize samples.
var ErrBadChunk = errors.New("vad: chunk must be exactly 512 samples")

// Engine scores PCM chunks for speech activity.
//
// An Engine instance is bound to a single audio stream and is not safe for
// concurrent use; each device listener owns its own Engine.
type Engine interface {
	// Process returns the speech probability (0.0 to 1.0) for a single
	// 512-sample float32 mono chunk. It must not block: it is called inline
	// from the listener drain loop.
	Process(chunk []float32) (float64, error)

	// Reset clears accumulated smoothing state. Called after every emitted
	// utterance so that a previous segment does not bias the next one.
	Reset()
}

// Factory creates one Engine per audio stream. Implementations must be safe
// for concurrent use; the audio supervisor calls New once per device.
type Factory interface {
	New() (Engine, error)
}
