// Package mock provides a test double for embeddings.Provider.
//
// By default the mock derives a deterministic vector from the input text, so
// similarity-dependent code under test gets distinct but stable vectors
// without scripting each one.
package mock

import (
	"context"
	"sync"

	"github.com/bigear-ai/bigear/pkg/provider/embeddings"
)

// Compile-time assertion.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Vectors maps input text to the vector to return. Texts not present
	// fall back to EmbedResult, or to a derived deterministic vector when
	// that is nil too.
	Vectors map[string][]float32

	// EmbedResult is the fallback vector for unscripted texts.
	EmbedResult []float32

	// Err, if non-nil, fails every Embed and EmbedBatch call.
	Err error

	// DimensionsValue is returned by Dimensions. Zero defaults to 8.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedCalls records every text passed to Embed or EmbedBatch, in order.
	EmbedCalls []string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vectorFor(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, texts...)
	if p.Err != nil {
		return nil, p.Err
	}
	result := make([][]float32, len(texts))
	for i, t := range texts {
		result[i] = p.vectorFor(t)
	}
	return result, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.DimensionsValue != 0 {
		return p.DimensionsValue
	}
	return 8
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	if p.ModelIDValue != "" {
		return p.ModelIDValue
	}
	return "mock-embed"
}

// CallCount reports how many texts were embedded in total.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.EmbedCalls)
}

// vectorFor must be called with mu held.
func (p *Provider) vectorFor(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		return v
	}
	if p.EmbedResult != nil {
		return p.EmbedResult
	}
	// FNV-1a seeded deterministic vector.
	dims := p.DimensionsValue
	if dims == 0 {
		dims = 8
	}
	h := uint32(2166136261)
	for i := 0; i < len(text); i++ {
		h ^= uint32(text[i])
		h *= 16777619
	}
	vec := make([]float32, dims)
	for i := range vec {
		h ^= uint32(i + 1)
		h *= 16777619
		vec[i] = float32(h%1000)/1000.0 - 0.5
	}
	return vec
}
