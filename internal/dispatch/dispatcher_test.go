package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigear-ai/bigear/internal/dispatch"
)

// memWriter records Add calls.
type memWriter struct {
	mu    sync.Mutex
	calls []memCall
	err   error
}

type memCall struct {
	text   string
	source string
}

func (m *memWriter) Add(_ context.Context, text, source string, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.calls = append(m.calls, memCall{text: text, source: source})
	return "id", nil
}

func (m *memWriter) Calls() []memCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]memCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// runDispatcher starts d.Run and returns a stop function.
func runDispatcher(t *testing.T, d *dispatch.Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestDispatcher_BroadcastsEveryItem(t *testing.T) {
	got := make(chan string, 4)
	d := dispatch.New(dispatch.Config{},
		dispatch.WithOnTranscript(func(text, source string) {
			got <- source + "|" + text
		}),
	)
	runDispatcher(t, d)

	d.Enqueue("hello there", "mic")
	d.Enqueue("hi back", "system")

	for _, want := range []string{"mic|hello there", "system|hi back"} {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("broadcast = %q, want %q", v, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestDispatcher_PersistsWhenRecording(t *testing.T) {
	mem := &memWriter{}
	seen := make(chan struct{}, 1)
	d := dispatch.New(dispatch.Config{WordThreshold: 4},
		dispatch.WithMemory(mem),
		dispatch.WithRecordingFunc(func() bool { return true }),
		dispatch.WithOnTranscript(func(string, string) { seen <- struct{}{} }),
	)
	runDispatcher(t, d)

	d.Enqueue("we should deploy the release tomorrow", "system")
	<-seen

	calls := mem.Calls()
	if len(calls) != 1 {
		t.Fatalf("memory calls = %d, want 1", len(calls))
	}
	if calls[0].source != "audio" {
		t.Errorf("source = %q, want audio", calls[0].source)
	}
	if calls[0].text != "SYSTEM: we should deploy the release tomorrow" {
		t.Errorf("text = %q, want source-tagged transcript", calls[0].text)
	}
}

func TestDispatcher_SkipsShortAndNotRecording(t *testing.T) {
	mem := &memWriter{}
	seen := make(chan struct{}, 2)

	var recording atomic.Bool
	d := dispatch.New(dispatch.Config{WordThreshold: 4},
		dispatch.WithMemory(mem),
		dispatch.WithRecordingFunc(recording.Load),
		dispatch.WithOnTranscript(func(string, string) { seen <- struct{}{} }),
	)
	runDispatcher(t, d)

	// Recording off: nothing persists.
	d.Enqueue("this has more than four words total", "system")
	<-seen

	// Recording on but below the word threshold.
	recording.Store(true)
	d.Enqueue("too short", "system")
	<-seen

	if n := len(mem.Calls()); n != 0 {
		t.Fatalf("memory calls = %d, want 0", n)
	}
}

func TestDispatcher_MemoryFailureIsNonFatal(t *testing.T) {
	mem := &memWriter{err: errors.New("store down")}
	got := make(chan string, 2)
	d := dispatch.New(dispatch.Config{},
		dispatch.WithMemory(mem),
		dispatch.WithRecordingFunc(func() bool { return true }),
		dispatch.WithOnTranscript(func(text, _ string) { got <- text }),
	)
	runDispatcher(t, d)

	d.Enqueue("the first item that fails to persist", "system")
	d.Enqueue("the second item still flows through", "system")

	for range 2 {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("pipeline stalled after memory failure")
		}
	}
}

func TestDispatcher_QuestionFromConfiguredSource(t *testing.T) {
	questions := make(chan string, 2)
	seen := make(chan struct{}, 2)
	d := dispatch.New(dispatch.Config{QuestionSources: []string{"system"}},
		dispatch.WithOnQuestion(func(q string) { questions <- q }),
		dispatch.WithOnTranscript(func(string, string) { seen <- struct{}{} }),
	)
	runDispatcher(t, d)

	// A question from the mic is the user's own; never triggers.
	d.Enqueue("What do you think about this approach?", "mic")
	<-seen
	// The same question over loopback triggers.
	d.Enqueue("What do you think about this approach?", "system")
	<-seen

	select {
	case q := <-questions:
		if q != "What do you think about this approach?" {
			t.Fatalf("question = %q", q)
		}
	case <-time.After(time.Second):
		t.Fatal("question callback not invoked")
	}
	select {
	case q := <-questions:
		t.Fatalf("unexpected second question %q", q)
	default:
	}
}

func TestDispatcher_SetQuestionSources(t *testing.T) {
	questions := make(chan string, 1)
	seen := make(chan struct{}, 1)
	d := dispatch.New(dispatch.Config{QuestionSources: []string{"system"}},
		dispatch.WithOnQuestion(func(q string) { questions <- q }),
		dispatch.WithOnTranscript(func(string, string) { seen <- struct{}{} }),
	)
	runDispatcher(t, d)

	d.SetQuestionSources([]string{"mic"})
	d.Enqueue("Should we ship this today?", "mic")
	<-seen

	select {
	case <-questions:
	case <-time.After(time.Second):
		t.Fatal("question from newly configured source not detected")
	}
}

func TestDispatcher_RingAccumulates(t *testing.T) {
	seen := make(chan struct{}, 3)
	d := dispatch.New(dispatch.Config{RingCapacity: 2},
		dispatch.WithOnTranscript(func(string, string) { seen <- struct{}{} }),
	)
	runDispatcher(t, d)

	for _, text := range []string{"first item", "second item", "third item"} {
		d.Enqueue(text, "system")
		<-seen
	}

	items := d.Ring().Items()
	if len(items) != 2 {
		t.Fatalf("ring len = %d, want 2", len(items))
	}
	if items[0].Text != "second item" {
		t.Fatalf("oldest ring item = %q, want 'second item'", items[0].Text)
	}
}

func TestDispatcher_IgnoresEmptyText(t *testing.T) {
	seen := make(chan struct{}, 1)
	d := dispatch.New(dispatch.Config{},
		dispatch.WithOnTranscript(func(string, string) { seen <- struct{}{} }),
	)
	runDispatcher(t, d)

	d.Enqueue("   ", "system")
	d.Enqueue("real text arrives", "system")
	<-seen

	if n := d.Ring().Len(); n != 1 {
		t.Fatalf("ring len = %d, want 1 (blank item dropped)", n)
	}
}
