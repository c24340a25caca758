// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// The memory layer embeds transcript utterances and screen snapshots into
// dense float32 vectors for semantic retrieval and importance scoring.
// Backends include OpenAI's text-embedding-3 family and local models served
// by Ollama (nomic-embed-text, mxbai-embed-large, …).
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different instances must not be mixed
// in the same similarity computation unless model and space are known to
// match.
type Provider interface {
	// Embed computes the vector for a single text. The text is passed
	// through verbatim; any model-specific prefixing is the caller's
	// responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for texts in one backend call. The result
	// has the same length and order as texts. On error the whole result is
	// nil; partial results are never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces.
	Dimensions() int

	// ModelID returns the backend-specific model identifier, for logging
	// and for verifying that a persisted collection was built with the
	// same model.
	ModelID() string
}
