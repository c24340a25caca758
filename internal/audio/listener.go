// Package audio runs the capture side of the pipeline: one Listener per
// input device segments the PCM stream into utterances with a VAD gate, and
// the Supervisor owns device selection, listener lifecycle, and the
// single-flight transcription worker.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigear-ai/bigear/pkg/audio"
	"github.com/bigear-ai/bigear/pkg/provider/vad"
)

// Utterance is a VAD-bounded speech segment emitted by a Listener.
type Utterance struct {
	// Source is the logical origin tag, "mic" or "system".
	Source string

	// PCM is float32 mono at the configured sample rate. It includes short
	// intra-utterance pauses but not the silence that ended the segment's
	// eligibility.
	PCM []float32

	Start time.Time
	End   time.Time
}

// ListenerConfig tunes a [Listener].
type ListenerConfig struct {
	// DeviceID selects the capture device; empty means the OS default.
	DeviceID string

	// Source tags every emitted utterance.
	Source string

	SampleRate int
	Channels   int

	// VADThreshold is the speech probability above which a chunk counts as
	// speech.
	VADThreshold float64

	// MaxSilenceChunks is how many consecutive non-speech chunks end an
	// utterance.
	MaxSilenceChunks int

	// MinSpeechSamples is the minimum number of speech-classified samples an
	// utterance needs to be emitted. Defaults to half a second.
	MinSpeechSamples int

	// QueueSize bounds the chunk queue between the audio thread and the
	// drain loop. Defaults to 512 chunks (~16s).
	QueueSize int
}

func (c *ListenerConfig) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.VADThreshold <= 0 {
		c.VADThreshold = 0.5
	}
	if c.MaxSilenceChunks <= 0 {
		c.MaxSilenceChunks = 15
	}
	if c.MinSpeechSamples <= 0 {
		c.MinSpeechSamples = c.SampleRate / 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 512
	}
}

// Listener captures one device and emits utterances. The audio thread only
// downmixes and slices chunks; VAD scoring and the speech state machine run
// on the drain goroutine so the device callback never blocks.
type Listener struct {
	cfg      ListenerConfig
	platform audio.Platform
	engine   vad.Engine
	emit     func(Utterance)
	logger   *slog.Logger

	queue chan []float32

	// pending accumulates samples on the audio thread until a full VAD chunk
	// is available. Touched only by the data callback.
	pending []float32

	mu      sync.Mutex
	stream  audio.Stream
	started bool
	done    chan struct{}
	drained chan struct{}

	// speech state, owned by the drain goroutine
	speaking      bool
	buffer        []float32
	speechSamples int
	silenceChunks int
	segmentStart  time.Time

	now func() time.Time
}

// NewListener creates a listener. Call Start to begin capturing.
func NewListener(cfg ListenerConfig, platform audio.Platform, engine vad.Engine, emit func(Utterance)) *Listener {
	cfg.applyDefaults()
	return &Listener{
		cfg:      cfg,
		platform: platform,
		engine:   engine,
		emit:     emit,
		logger:   slog.Default().With("component", "listener", "source", cfg.Source, "device", cfg.DeviceID),
		queue:    make(chan []float32, cfg.QueueSize),
		now:      time.Now,
	}
}

// Start opens the device stream and launches the drain loop.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}

	stream, err := l.platform.Open(ctx, l.cfg.DeviceID, audio.StreamConfig{
		SampleRate: l.cfg.SampleRate,
		Channels:   l.cfg.Channels,
	}, l.onData)
	if err != nil {
		return fmt.Errorf("audio: open device %q: %w", l.cfg.DeviceID, err)
	}

	l.stream = stream
	l.started = true
	l.done = make(chan struct{})
	l.drained = make(chan struct{})
	go l.drain()
	return nil
}

// Stop closes the stream and waits for the drain loop to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.started = false
	stream := l.stream
	done := l.done
	drained := l.drained
	l.mu.Unlock()

	if err := stream.Close(); err != nil {
		l.logger.Warn("failed to close stream", "err", err)
	}
	close(done)
	<-drained
}

// onData runs on the audio thread. It must not block: full chunks are handed
// to the drain loop via a non-blocking send and dropped when the queue is
// full.
func (l *Listener) onData(samples []float32) {
	if l.cfg.Channels > 1 {
		samples = audio.DownmixMono(samples, l.cfg.Channels)
	}
	l.pending = append(l.pending, samples...)
	for len(l.pending) >= vad.ChunkSize {
		chunk := make([]float32, vad.ChunkSize)
		copy(chunk, l.pending[:vad.ChunkSize])
		l.pending = l.pending[vad.ChunkSize:]
		select {
		case l.queue <- chunk:
		default:
			// Capture outpaced VAD; losing a chunk is better than blocking
			// the device callback.
		}
	}
}

func (l *Listener) drain() {
	defer close(l.drained)
	for {
		select {
		case <-l.done:
			return
		case chunk := <-l.queue:
			l.processChunk(chunk)
		}
	}
}

// processChunk advances the Idle/Speaking state machine by one VAD chunk.
func (l *Listener) processChunk(chunk []float32) {
	prob, err := l.engine.Process(chunk)
	if err != nil {
		// A single bad chunk is recoverable; keep the segment going.
		l.logger.Debug("vad error on chunk", "err", err)
		return
	}
	isSpeech := prob > l.cfg.VADThreshold

	switch {
	case !l.speaking && isSpeech:
		l.speaking = true
		l.segmentStart = l.now()
		l.buffer = append(l.buffer[:0], chunk...)
		l.speechSamples = len(chunk)
		l.silenceChunks = 0

	case l.speaking && isSpeech:
		l.buffer = append(l.buffer, chunk...)
		l.speechSamples += len(chunk)
		l.silenceChunks = 0

	case l.speaking && !isSpeech:
		l.buffer = append(l.buffer, chunk...)
		l.silenceChunks++
		if l.silenceChunks >= l.cfg.MaxSilenceChunks {
			l.finishSegment()
		}
	}
}

// finishSegment emits the buffered segment when it carries enough speech,
// then resets for the next one.
func (l *Listener) finishSegment() {
	if l.speechSamples >= l.cfg.MinSpeechSamples {
		pcm := make([]float32, len(l.buffer))
		copy(pcm, l.buffer)
		l.emit(Utterance{
			Source: l.cfg.Source,
			PCM:    pcm,
			Start:  l.segmentStart,
			End:    l.now(),
		})
	} else {
		l.logger.Debug("discarding short speech segment",
			"speech_samples", l.speechSamples,
			"min", l.cfg.MinSpeechSamples)
	}

	l.speaking = false
	l.buffer = l.buffer[:0]
	l.speechSamples = 0
	l.silenceChunks = 0
	l.engine.Reset()
}
