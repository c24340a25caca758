package memory

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/bigear-ai/bigear/pkg/provider/embeddings"
)

// Chunker defaults.
const (
	DefaultChunkThreshold = 0.5
	DefaultMinChunkSize   = 50
	DefaultMaxChunkSize   = 500

	// minSentenceLength is the shortest text worth splitting at all.
	minSentenceLength = 10
)

// Chunker splits long text at semantic breakpoints before storage: the text
// is cut into sentences, each sentence embedded, and a chunk boundary placed
// wherever the similarity between consecutive sentences drops below the
// threshold. One chunker instance is created at startup and injected; it
// holds no global state.
type Chunker struct {
	embedder  embeddings.Provider
	threshold float64
	minSize   int
	maxSize   int
	logger    *slog.Logger
}

// ChunkerOption configures a [Chunker].
type ChunkerOption func(*Chunker)

// WithChunkThreshold sets the similarity below which a boundary is placed.
func WithChunkThreshold(v float64) ChunkerOption {
	return func(c *Chunker) { c.threshold = v }
}

// WithChunkSizes bounds chunk length in characters.
func WithChunkSizes(minSize, maxSize int) ChunkerOption {
	return func(c *Chunker) {
		c.minSize = minSize
		c.maxSize = maxSize
	}
}

// NewChunker creates a chunker over embedder.
func NewChunker(embedder embeddings.Provider, opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		embedder:  embedder,
		threshold: DefaultChunkThreshold,
		minSize:   DefaultMinChunkSize,
		maxSize:   DefaultMaxChunkSize,
		logger:    slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits text at semantic breakpoints. Short texts come back as a
// single chunk; embedding failure is returned to the caller, who should fall
// back to storing the text unchunked.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) < minSentenceLength {
		return []string{trimmed}, nil
	}

	sentences := splitSentences(trimmed)
	if len(sentences) <= 1 {
		return sentences, nil
	}

	vecs, err := c.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return nil, err
	}

	var breakpoints []int
	for i := 0; i < len(vecs)-1; i++ {
		if cosine(vecs[i], vecs[i+1]) < c.threshold {
			breakpoints = append(breakpoints, i+1)
		}
	}
	return c.merge(sentences, breakpoints), nil
}

// ChunkBatch chunks several texts at once, first merging consecutive texts
// that are semantically related. Transcript lines are often fragments of one
// thought; merging them before chunking keeps the thought in one record.
func (c *Chunker) ChunkBatch(ctx context.Context, texts []string) ([]string, error) {
	valid := make([]string, 0, len(texts))
	for _, t := range texts {
		if s := strings.TrimSpace(t); s != "" {
			valid = append(valid, s)
		}
	}
	switch len(valid) {
	case 0:
		return nil, nil
	case 1:
		return c.Chunk(ctx, valid[0])
	}

	merged, err := c.mergeRelated(ctx, valid)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, text := range merged {
		chunks, err := c.Chunk(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}

// mergeRelated joins consecutive texts whose embeddings are at least
// threshold-similar.
func (c *Chunker) mergeRelated(ctx context.Context, texts []string) ([]string, error) {
	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	var merged []string
	group := []string{texts[0]}
	for i := 1; i < len(texts); i++ {
		if cosine(vecs[i-1], vecs[i]) >= c.threshold {
			group = append(group, texts[i])
			continue
		}
		merged = append(merged, strings.Join(group, " "))
		group = []string{texts[i]}
	}
	return append(merged, strings.Join(group, " ")), nil
}

// merge joins sentences between breakpoints, splitting oversized chunks and
// folding undersized ones into their predecessor.
func (c *Chunker) merge(sentences []string, breakpoints []int) []string {
	if len(breakpoints) == 0 {
		return []string{strings.Join(sentences, " ")}
	}

	var chunks []string
	start := 0
	for _, bp := range append(breakpoints, len(sentences)) {
		group := sentences[start:bp]
		start = bp
		text := strings.Join(group, " ")

		switch {
		case len(text) > c.maxSize:
			chunks = append(chunks, c.splitOversized(group)...)
		case len(text) >= c.minSize || len(chunks) == 0:
			chunks = append(chunks, text)
		default:
			chunks[len(chunks)-1] += " " + text
		}
	}
	return chunks
}

// splitOversized packs sentences greedily up to maxSize per chunk.
func (c *Chunker) splitOversized(sentences []string) []string {
	var chunks []string
	var current []string
	length := 0
	for _, s := range sentences {
		if length+len(s) > c.maxSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			length = 0
		}
		current = append(current, s)
		length += len(s) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace, falling back to newline splitting for unpunctuated text.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		b.WriteRune(runes[i])
		if isTerminal(runes[i]) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}

	if len(sentences) <= 1 && strings.Contains(text, "\n") {
		sentences = sentences[:0]
		for _, line := range strings.Split(text, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
}
