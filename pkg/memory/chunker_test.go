package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bigear-ai/bigear/pkg/memory"
	embmock "github.com/bigear-ai/bigear/pkg/provider/embeddings/mock"
)

func TestChunker_ShortAndEmptyText(t *testing.T) {
	c := memory.NewChunker(&embmock.Provider{})
	ctx := context.Background()

	chunks, err := c.Chunk(ctx, "   ")
	if err != nil || chunks != nil {
		t.Fatalf("blank text: chunks=%v err=%v", chunks, err)
	}

	chunks, err = c.Chunk(ctx, "hi")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "hi" {
		t.Fatalf("short text chunks = %v", chunks)
	}
}

func TestChunker_SplitsAtSimilarityDrop(t *testing.T) {
	embedder := &embmock.Provider{Vectors: map[string][]float32{
		"The ocean is vast.":               {1, 0},
		"Waves crash on the shore.":        {1, 0},
		"Stock prices fell sharply today.": {0, 1},
	}}
	c := memory.NewChunker(embedder, memory.WithChunkSizes(10, 500))

	chunks, err := c.Chunk(context.Background(),
		"The ocean is vast. Waves crash on the shore. Stock prices fell sharply today.")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	want := []string{
		"The ocean is vast. Waves crash on the shore.",
		"Stock prices fell sharply today.",
	}
	if len(chunks) != 2 || chunks[0] != want[0] || chunks[1] != want[1] {
		t.Fatalf("chunks = %v, want %v", chunks, want)
	}
}

func TestChunker_NoBoundaryKeepsOneChunk(t *testing.T) {
	embedder := &embmock.Provider{EmbedResult: []float32{1, 0}}
	c := memory.NewChunker(embedder)

	text := "The build passed on the first try. Every test stayed green."
	chunks, err := c.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestChunker_SplitsOversizedChunk(t *testing.T) {
	embedder := &embmock.Provider{Vectors: map[string][]float32{
		"Intro line one.":        {0, 1},
		"Alpha beta gamma one.":  {1, 0},
		"Delta epsilon two two.": {1, 0},
		"Zeta eta theta three.":  {1, 0},
	}}
	c := memory.NewChunker(embedder, memory.WithChunkSizes(5, 40))

	chunks, err := c.Chunk(context.Background(),
		"Intro line one. Alpha beta gamma one. Delta epsilon two two. Zeta eta theta three.")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("chunks = %v, want 4 entries", chunks)
	}
	for _, chunk := range chunks {
		if len(chunk) > 40 {
			t.Errorf("chunk %q exceeds the size cap", chunk)
		}
	}
}

func TestChunker_FoldsUndersizedChunkIntoPredecessor(t *testing.T) {
	embedder := &embmock.Provider{Vectors: map[string][]float32{
		"The project deadline moved to Friday afternoon.": {1, 0},
		"Okay then.": {0, 1},
	}}
	c := memory.NewChunker(embedder)

	chunks, err := c.Chunk(context.Background(),
		"The project deadline moved to Friday afternoon. Okay then.")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %v, want the fragment folded into one chunk", chunks)
	}
	if chunks[0] != "The project deadline moved to Friday afternoon. Okay then." {
		t.Fatalf("chunk = %q", chunks[0])
	}
}

func TestChunker_EmbedErrorPropagates(t *testing.T) {
	wantErr := errors.New("embedder down")
	c := memory.NewChunker(&embmock.Provider{Err: wantErr})

	_, err := c.Chunk(context.Background(), "First sentence here. Second sentence here.")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestChunkBatch_MergesRelatedTexts(t *testing.T) {
	embedder := &embmock.Provider{Vectors: map[string][]float32{
		"We shipped the release.": {1, 0},
		"It went out smoothly.":   {1, 0},
	}}
	c := memory.NewChunker(embedder)

	chunks, err := c.ChunkBatch(context.Background(),
		[]string{"We shipped the release.", "It went out smoothly."})
	if err != nil {
		t.Fatalf("ChunkBatch: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "We shipped the release. It went out smoothly." {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestChunkBatch_KeepsUnrelatedTextsApart(t *testing.T) {
	embedder := &embmock.Provider{Vectors: map[string][]float32{
		"The weather is sunny today.": {1, 0},
		"Database migration failed.":  {0, 1},
	}}
	c := memory.NewChunker(embedder)

	chunks, err := c.ChunkBatch(context.Background(),
		[]string{"The weather is sunny today.", "Database migration failed."})
	if err != nil {
		t.Fatalf("ChunkBatch: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %v, want 2 entries", chunks)
	}
}

func TestChunkBatch_FiltersBlankTexts(t *testing.T) {
	c := memory.NewChunker(&embmock.Provider{})

	chunks, err := c.ChunkBatch(context.Background(), []string{"", "   "})
	if err != nil || chunks != nil {
		t.Fatalf("blank batch: chunks=%v err=%v", chunks, err)
	}
}
