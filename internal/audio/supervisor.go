package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/bigear-ai/bigear/internal/observe"
	"github.com/bigear-ai/bigear/pkg/audio"
	"github.com/bigear-ai/bigear/pkg/provider/stt"
	"github.com/bigear-ai/bigear/pkg/provider/vad"
)

// Source tags assigned by device selection.
const (
	SourceMic    = "mic"
	SourceSystem = "system"
)

// DefaultStopTimeout bounds how long Stop waits for the transcription worker.
const DefaultStopTimeout = 5 * time.Second

// utteranceQueueSize bounds the utterance handoff between listeners and the
// transcription worker.
const utteranceQueueSize = 32

// SupervisorConfig tunes a [Supervisor].
type SupervisorConfig struct {
	SampleRate       int
	VADThreshold     float64
	MaxSilenceChunks int

	// CaptureSystemAudio enables loopback device selection.
	CaptureSystemAudio bool

	// LoopbackDevices are lowercase name substrings that mark a device as a
	// system-audio tap (blackhole, vb-cable, ...).
	LoopbackDevices []string

	// ExcludedDevices are lowercase name substrings that exclude a loopback
	// candidate (e.g. "iphone", "teams").
	ExcludedDevices []string

	// Language is an optional transcription language hint.
	Language string

	StopTimeout time.Duration
}

// Supervisor owns the audio side: it enumerates devices, runs one [Listener]
// per selected device, and funnels every utterance through a single
// transcription worker. The worker serializes Transcribe calls so the STT
// model never sees two concurrent requests.
type Supervisor struct {
	cfg        SupervisorConfig
	platform   audio.Platform
	vadFactory vad.Factory
	transcribe stt.Provider
	onText     func(text, source string)
	metrics    *observe.Metrics
	logger     *slog.Logger

	mu        sync.Mutex
	running   bool
	listeners []*Listener
	utterCh   chan Utterance
	cancel    context.CancelFunc
	workerWG  sync.WaitGroup

	// sttMu enforces single-flight transcription.
	sttMu sync.Mutex
}

// NewSupervisor wires a supervisor; onText receives every non-empty
// transcription result.
func NewSupervisor(cfg SupervisorConfig, platform audio.Platform, vadFactory vad.Factory, transcribe stt.Provider, onText func(text, source string), metrics *observe.Metrics) *Supervisor {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Supervisor{
		cfg:        cfg,
		platform:   platform,
		vadFactory: vadFactory,
		transcribe: transcribe,
		onText:     onText,
		metrics:    metrics,
		logger:     slog.Default().With("component", "audio_supervisor"),
	}
}

// Start enumerates devices and launches one listener per selection. Calling
// Start while running is a no-op. A device that fails to open is logged and
// skipped; Start fails only when no device could be started.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.platform == nil || s.transcribe == nil {
		return fmt.Errorf("audio: capture platform and stt provider are required")
	}

	devices, err := s.platform.Devices(ctx)
	if err != nil {
		return fmt.Errorf("audio: enumerate devices: %w", err)
	}
	selected := s.selectDevices(devices)
	if len(selected) == 0 {
		return fmt.Errorf("audio: no capture devices available")
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.utterCh = make(chan Utterance, utteranceQueueSize)
	s.workerWG.Add(1)
	go s.worker(workerCtx)

	for _, sel := range selected {
		engine, err := s.vadFactory.New()
		if err != nil {
			s.logger.Error("failed to create vad engine, skipping device",
				"device", sel.device.Name, "err", err)
			continue
		}
		l := NewListener(ListenerConfig{
			DeviceID:         sel.device.ID,
			Source:           sel.source,
			SampleRate:       s.cfg.SampleRate,
			VADThreshold:     s.cfg.VADThreshold,
			MaxSilenceChunks: s.cfg.MaxSilenceChunks,
		}, s.platform, engine, s.enqueue)
		if err := l.Start(ctx); err != nil {
			s.logger.Error("failed to start listener, skipping device",
				"device", sel.device.Name, "err", err)
			continue
		}
		s.listeners = append(s.listeners, l)
		s.metrics.ActiveListeners.Add(ctx, 1)
		s.logger.Info("listener started",
			"device", sel.device.Name, "source", sel.source)
	}

	if len(s.listeners) == 0 {
		cancel()
		s.workerWG.Wait()
		return fmt.Errorf("audio: all devices failed to start")
	}

	s.running = true
	return nil
}

// Stop shuts down all listeners and waits for the transcription worker with
// a bounded timeout.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	listeners := s.listeners
	s.listeners = nil
	cancel := s.cancel
	s.mu.Unlock()

	for _, l := range listeners {
		l.Stop()
		s.metrics.ActiveListeners.Add(context.Background(), -1)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("transcription worker did not stop in time")
	}
}

// Running reports whether the supervisor is started.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

type selection struct {
	device audio.Device
	source string
}

// selectDevices picks the OS default plus any loopback devices. The default
// is always included; the deny-list only filters loopback candidates.
func (s *Supervisor) selectDevices(devices []audio.Device) []selection {
	var out []selection
	for _, d := range devices {
		name := strings.ToLower(d.Name)
		switch {
		case d.IsDefault:
			out = append(out, selection{device: d, source: SourceMic})
		case s.cfg.CaptureSystemAudio && matchesAny(name, s.cfg.LoopbackDevices) && !matchesAny(name, s.cfg.ExcludedDevices):
			out = append(out, selection{device: d, source: SourceSystem})
		}
	}
	return out
}

func matchesAny(name string, substrings []string) bool {
	for _, sub := range substrings {
		if sub != "" && strings.Contains(name, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// enqueue hands an utterance to the worker without blocking the listener's
// drain loop.
func (s *Supervisor) enqueue(u Utterance) {
	s.metrics.RecordUtterance(context.Background(), u.Source)
	select {
	case s.utterCh <- u:
	default:
		s.logger.Warn("utterance queue full, dropping utterance",
			"source", u.Source, "samples", len(u.PCM))
	}
}

// worker transcribes utterances one at a time.
func (s *Supervisor) worker(ctx context.Context) {
	defer s.workerWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.utterCh:
			s.handleUtterance(ctx, u)
		}
	}
}

func (s *Supervisor) handleUtterance(ctx context.Context, u Utterance) {
	s.sttMu.Lock()
	defer s.sttMu.Unlock()

	start := time.Now()
	res, err := s.transcribe.Transcribe(ctx, u.PCM, s.cfg.Language)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("source", u.Source)))
	if err != nil {
		s.metrics.RecordProviderError(ctx, "stt", "transcribe")
		s.logger.Error("transcription failed", "source", u.Source, "err", err)
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return
	}
	s.logger.Debug("transcribed utterance",
		"source", u.Source, "chars", len(text), "confidence", res.Confidence)
	if s.onText != nil {
		s.onText(text, u.Source)
	}
}
