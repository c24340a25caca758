// Package stt defines the Provider interface for batch speech-to-text
// backends.
//
// Unlike streaming transcription services, the listener pipeline produces
// complete utterances: a VAD-bounded span of float32 PCM handed over in one
// call. A Provider turns that span into text plus a confidence score.
//
// Providers are NOT required to be re-entrant. The audio supervisor
// serializes all Transcribe calls behind a single mutex, so implementations
// may hold exclusive native resources (a whisper.cpp context, a GPU queue)
// without further locking.
package stt

import (
	"context"
	"errors"
)

// Errors returned by Provider implementations. Callers match with errors.Is.
var (
	// ErrEmptyInput is returned when the PCM slice is empty.
	ErrEmptyInput = errors.New("stt: empty audio input")

	// ErrModelLoadFailed is returned by constructors when the underlying
	// model cannot be loaded. It is fatal for the worker that owns the
	// provider.
	ErrModelLoadFailed = errors.New("stt: model load failed")
)

// Result is a completed transcription.
type Result struct {
	// Text is the transcribed speech, whitespace-trimmed. Empty when the
	// model heard nothing intelligible.
	Text string

	// Confidence is the model's overall confidence (0.0 to 1.0). Providers
	// without a native confidence signal report 1.0.
	Confidence float64
}

// Provider transcribes one utterance per call.
type Provider interface {
	// Transcribe converts pcm (float32 mono at 16 kHz) into text. language
	// is an optional BCP-47 hint; empty means auto-detect. Returns
	// ErrEmptyInput when pcm is empty. Calls are serialized by the caller.
	Transcribe(ctx context.Context, pcm []float32, language string) (Result, error)
}
