package screen

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	ocrmock "github.com/bigear-ai/bigear/pkg/provider/ocr/mock"
)

// fakeCapturer returns scripted frames; when the script runs out the last
// frame repeats.
type fakeCapturer struct {
	frames []image.Image
	err    error
	calls  int
}

func (f *fakeCapturer) Capture(context.Context) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.frames) {
		i = len(f.frames) - 1
	}
	return f.frames[i], nil
}

type recordingMem struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *recordingMem) Add(_ context.Context, text, source string, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if source != "screen" {
		return "", errors.New("unexpected source " + source)
	}
	m.texts = append(m.texts, text)
	return "id", nil
}

func (m *recordingMem) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

func newTestLoop(capturer Capturer, extractor *ocrmock.Provider, mem *recordingMem) *Loop {
	opts := []Option{
		WithRecordingFunc(func() bool { return true }),
	}
	if mem != nil {
		opts = append(opts, WithMemory(mem))
	}
	return NewLoop(Config{StableCount: 2, MinTextLength: 5}, capturer, extractor, opts...)
}

func TestLoop_PersistsStableText(t *testing.T) {
	// Three visually distinct frames so the hash gate never short-circuits.
	cap := &fakeCapturer{frames: []image.Image{patternImage(1), patternImage(2), patternImage(3)}}
	extractor := &ocrmock.Provider{Texts: []string{"Hello there", "Hello there", "World view"}}
	mem := &recordingMem{}
	l := newTestLoop(cap, extractor, mem)

	ctx := context.Background()
	for range 3 {
		l.cycle(ctx)
	}

	texts := mem.Texts()
	if len(texts) != 1 {
		t.Fatalf("persisted %d texts, want 1", len(texts))
	}
	if texts[0] != "Hello there" {
		t.Fatalf("persisted %q, want the stable text", texts[0])
	}
}

func TestLoop_SingleObservationNotPersisted(t *testing.T) {
	cap := &fakeCapturer{frames: []image.Image{patternImage(1), patternImage(2)}}
	extractor := &ocrmock.Provider{Texts: []string{"Hello there", "World view"}}
	mem := &recordingMem{}
	l := newTestLoop(cap, extractor, mem)

	ctx := context.Background()
	for range 2 {
		l.cycle(ctx)
	}

	if n := len(mem.Texts()); n != 0 {
		t.Fatalf("persisted %d texts, want 0 (nothing was stable)", n)
	}
}

func TestLoop_NoDuplicateWritesForSameStableText(t *testing.T) {
	cap := &fakeCapturer{frames: []image.Image{
		patternImage(1), patternImage(2), patternImage(3), patternImage(4),
	}}
	extractor := &ocrmock.Provider{Text: "Hello there"}
	mem := &recordingMem{}
	l := newTestLoop(cap, extractor, mem)

	ctx := context.Background()
	for range 4 {
		l.cycle(ctx)
	}

	if n := len(mem.Texts()); n != 1 {
		t.Fatalf("persisted %d texts, want 1 (duplicates suppressed)", n)
	}
}

func TestLoop_HashMatchSkipsOCR(t *testing.T) {
	// The same frame every cycle: only the first cycle should run OCR.
	cap := &fakeCapturer{frames: []image.Image{patternImage(1)}}
	extractor := &ocrmock.Provider{Text: "Hello there"}
	l := newTestLoop(cap, extractor, nil)

	ctx := context.Background()
	first := l.cycle(ctx)
	second := l.cycle(ctx)

	if extractor.CallCount() != 1 {
		t.Fatalf("OCR calls = %d, want 1", extractor.CallCount())
	}
	if second >= first {
		t.Errorf("hash-match sleep %v should be shorter than capture interval %v", second, first)
	}
}

func TestLoop_ShortTextNotPersisted(t *testing.T) {
	cap := &fakeCapturer{frames: []image.Image{patternImage(1), patternImage(2)}}
	extractor := &ocrmock.Provider{Text: "hi"}
	mem := &recordingMem{}
	l := newTestLoop(cap, extractor, mem)

	ctx := context.Background()
	for range 2 {
		l.cycle(ctx)
	}

	if n := len(mem.Texts()); n != 0 {
		t.Fatalf("persisted %d texts, want 0 (below min length)", n)
	}
}

func TestLoop_NotRecordingNotPersisted(t *testing.T) {
	cap := &fakeCapturer{frames: []image.Image{patternImage(1), patternImage(2)}}
	extractor := &ocrmock.Provider{Text: "Hello there"}
	mem := &recordingMem{}
	l := NewLoop(Config{StableCount: 2, MinTextLength: 5}, cap, extractor,
		WithMemory(mem),
		WithRecordingFunc(func() bool { return false }),
	)

	ctx := context.Background()
	for range 2 {
		l.cycle(ctx)
	}

	if n := len(mem.Texts()); n != 0 {
		t.Fatalf("persisted %d texts, want 0 (recording off)", n)
	}
}

func TestLoop_CaptureFailureKeepsGoing(t *testing.T) {
	cap := &fakeCapturer{err: errors.New("no display")}
	extractor := &ocrmock.Provider{Text: "Hello there"}
	l := newTestLoop(cap, extractor, nil)

	d := l.cycle(context.Background())
	if d != l.cfg.CaptureInterval {
		t.Fatalf("sleep after capture failure = %v, want capture interval", d)
	}
	if l.Latest() != nil {
		t.Error("snapshot published despite capture failure")
	}
}

func TestLoop_OCRFailureKeepsPreviousText(t *testing.T) {
	cap := &fakeCapturer{frames: []image.Image{patternImage(1), patternImage(2)}}
	extractor := &ocrmock.Provider{Texts: []string{"Hello there"}}
	l := newTestLoop(cap, extractor, nil)

	ctx := context.Background()
	l.cycle(ctx)

	extractor.Err = errors.New("engine crashed")
	l.cycle(ctx)

	snap := l.Latest()
	if snap == nil {
		t.Fatal("no snapshot")
	}
	if snap.Text != "Hello there" {
		t.Fatalf("text = %q, want previous text retained", snap.Text)
	}
}

func TestLoop_SnapshotIsSelfConsistent(t *testing.T) {
	cap := &fakeCapturer{frames: []image.Image{patternImage(1), patternImage(2)}}
	extractor := &ocrmock.Provider{Texts: []string{"first screen text", "second screen text"}}
	l := newTestLoop(cap, extractor, nil)

	ctx := context.Background()
	l.cycle(ctx)
	first := l.Latest()
	l.cycle(ctx)
	second := l.Latest()

	if first.Text != "first screen text" || second.Text != "second screen text" {
		t.Fatalf("texts = %q, %q", first.Text, second.Text)
	}
	if first.Image == second.Image {
		t.Error("snapshots share an image across cycles")
	}
	if len(first.JPEG) == 0 || len(second.JPEG) == 0 {
		t.Error("snapshot missing JPEG rendering")
	}
	// The first snapshot must be untouched by the second cycle.
	if first.Text != "first screen text" {
		t.Error("older snapshot mutated")
	}
}

func TestLoop_EmptyOCRTextIsNoUpdate(t *testing.T) {
	cap := &fakeCapturer{frames: []image.Image{patternImage(1), patternImage(2), patternImage(3)}}
	extractor := &ocrmock.Provider{Texts: []string{"Hello there", "", "Hello there"}}
	mem := &recordingMem{}
	l := newTestLoop(cap, extractor, mem)

	ctx := context.Background()
	for range 3 {
		l.cycle(ctx)
	}

	// The blank reading neither clears the text nor resets stability; the
	// second "Hello there" makes it stable.
	if n := len(mem.Texts()); n != 1 {
		t.Fatalf("persisted %d texts, want 1", n)
	}
	if got := l.Latest().Text; got != "Hello there" {
		t.Fatalf("latest text = %q, want retained text", got)
	}
}
