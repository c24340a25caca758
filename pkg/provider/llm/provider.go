// Package llm defines the Provider interface for streaming language-model
// backends.
//
// The analysis layer builds a two-message prompt (fixed system identity plus
// a human message carrying screen context, memory context and the query,
// optionally with a JPEG frame attached) and consumes the answer as a token
// stream. Providers translate that shape to their SDK and emit chunks as they
// arrive.
//
// Implementations must be safe for concurrent use and must close the stream
// channel when generation finishes, fails, or ctx is cancelled.
package llm

import (
	"context"
	"errors"
)

// Errors surfaced by Provider implementations.
var (
	// ErrNotConfigured is returned when the selected provider is missing a
	// required credential (e.g. Gemini without an API key).
	ErrNotConfigured = errors.New("llm: provider not configured")

	// ErrRateLimited is returned when the backend rejects the request due to
	// quota exhaustion.
	ErrRateLimited = errors.New("llm: rate limited")
)

// ToolDefinition describes a function the model may call mid-stream.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description is shown to the model when deciding whether to call.
	Description string

	// Parameters is the JSON Schema of the tool's arguments.
	Parameters map[string]any
}

// ToolCall is a completed tool invocation requested by the model. Providers
// accumulate streamed argument fragments and emit the call only once it is
// complete.
type ToolCall struct {
	// Name is the tool name.
	Name string

	// Arguments is the JSON-encoded argument object.
	Arguments string
}

// Request carries one analysis prompt.
type Request struct {
	// System is the fixed assistant-identity instruction.
	System string

	// Prompt is the human message body.
	Prompt string

	// ImageJPEG, when non-nil, is a JPEG-encoded frame attached to the
	// human message. Providers without vision support ignore it.
	ImageJPEG []byte

	// Tools lists functions offered to the model. May be empty.
	Tools []ToolDefinition
}

// Chunk is one streamed fragment of the model's answer.
type Chunk struct {
	// Text is incremental answer text. May be empty on tool-call or error
	// chunks.
	Text string

	// ToolCalls holds completed tool invocations. Emitted at most once per
	// stream, on or before the final chunk.
	ToolCalls []ToolCall

	// Err terminates the stream when non-nil. The channel is closed right
	// after an error chunk.
	Err error
}

// Provider is the abstraction over any streaming LLM backend.
type Provider interface {
	// Stream sends req and returns a channel emitting Chunks as they
	// arrive. The channel is closed by the implementation when the stream
	// ends or ctx is cancelled; callers must drain it. A non-nil error is
	// returned only for failures that prevent the stream from starting.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
