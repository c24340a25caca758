// Package monitor assembles the listening runtime: device audio capture,
// the screen loop, the transcript dispatcher and the auto-answer
// controller. It is the single owner of the recording and auto-answer
// toggles and the only place the pieces are wired together.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bigear-ai/bigear/internal/analysis"
	listen "github.com/bigear-ai/bigear/internal/audio"
	"github.com/bigear-ai/bigear/internal/autoanswer"
	"github.com/bigear-ai/bigear/internal/config"
	"github.com/bigear-ai/bigear/internal/dispatch"
	"github.com/bigear-ai/bigear/internal/hub"
	"github.com/bigear-ai/bigear/internal/observe"
	"github.com/bigear-ai/bigear/internal/screen"
	"github.com/bigear-ai/bigear/pkg/audio"
	"github.com/bigear-ai/bigear/pkg/memory"
	"github.com/bigear-ai/bigear/pkg/provider/llm"
	"github.com/bigear-ai/bigear/pkg/provider/ocr"
	"github.com/bigear-ai/bigear/pkg/provider/stt"
	"github.com/bigear-ai/bigear/pkg/provider/vad"
)

// Deps are the external collaborators the monitor builds the runtime from.
// Memory may be nil, in which case nothing is persisted or retrieved.
type Deps struct {
	Platform   audio.Platform
	VADFactory vad.Factory
	STT        stt.Provider
	OCR        ocr.Provider
	Capturer   screen.Capturer
	LLM        llm.Provider
	Memory     analysis.MemoryService
	Chunker    *memory.Chunker
	Hub        *hub.Hub
	Metrics    *observe.Metrics
}

// Monitor owns the runtime components and their shared toggles.
type Monitor struct {
	cfg *config.Config

	supervisor *listen.Supervisor
	screenLoop *screen.Loop
	dispatcher *dispatch.Dispatcher
	controller *autoanswer.Controller
	analyzer   *analysis.Analyzer
	batcher    *memory.Batcher
	hub        *hub.Hub

	recording atomic.Bool

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group

	cbMu          sync.Mutex
	lastItem      string
	onTranscripts []func(text, source string)
	onQuestions   []func(question string)

	// answerWG tracks in-flight auto-answer streams.
	answerWG sync.WaitGroup

	logger *slog.Logger
}

// New builds the full runtime from config and collaborators. Nothing runs
// until Start.
func New(cfg *config.Config, deps Deps) *Monitor {
	m := &Monitor{
		cfg:    cfg,
		hub:    deps.Hub,
		logger: slog.Default().With("component", "monitor"),
	}
	m.recording.Store(true)

	var analyzerOpts []analysis.Option
	if deps.Memory != nil {
		analyzerOpts = append(analyzerOpts, analysis.WithMemory(deps.Memory))
	}
	if deps.Metrics != nil {
		analyzerOpts = append(analyzerOpts, analysis.WithMetrics(deps.Metrics))
	}
	m.analyzer = analysis.New(deps.LLM, analysis.Config{
		ContextMaxLength: cfg.LLM.ContextMaxLength,
		MemoryTopK:       cfg.LLM.MemoryTopK,
	}, analyzerOpts...)

	m.controller = autoanswer.New(m.analyzer, deps.Hub, autoanswer.Config{
		Enabled:        cfg.AutoAnswer.Enabled == nil || *cfg.AutoAnswer.Enabled,
		Cooldown:       time.Duration(cfg.AutoAnswer.CooldownSeconds * float64(time.Second)),
		ContextWindow:  time.Duration(cfg.AutoAnswer.ContextWindowSeconds * float64(time.Second)),
		ScreenTruncate: cfg.AutoAnswer.ScreenTruncate,
	},
		autoanswer.WithTranscriptFunc(m.RecentTranscript),
		autoanswer.WithScreenTextFunc(m.LatestText),
		autoanswer.WithMetrics(deps.Metrics),
	)

	// The dispatcher and screen loop write through a batcher when the
	// memory backend supports batch adds; the analyzer keeps direct access
	// so tool-call writes and queries stay synchronous.
	var memWriter interface {
		Add(ctx context.Context, text, source string, extra map[string]string) (string, error)
	}
	if deps.Memory != nil {
		memWriter = deps.Memory
		if bw, ok := deps.Memory.(memory.BatchWriter); ok {
			var batchOpts []memory.BatcherOption
			if deps.Chunker != nil {
				batchOpts = append(batchOpts, memory.WithBatchChunker(deps.Chunker))
			}
			m.batcher = memory.NewBatcher(bw, batchOpts...)
			memWriter = m.batcher
		}
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithRecordingFunc(m.Recording),
		dispatch.WithOnTranscript(m.handleTranscript),
		dispatch.WithOnQuestion(m.onQuestion),
	}
	if memWriter != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithMemory(memWriter))
	}
	if deps.Metrics != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithMetrics(deps.Metrics))
	}
	m.dispatcher = dispatch.New(dispatch.Config{
		MinQuestionLength: cfg.AutoAnswer.MinQuestionLength,
		QuestionSources:   cfg.Audio.QuestionSources,
	}, dispatchOpts...)

	screenOpts := []screen.Option{
		screen.WithRecordingFunc(m.Recording),
	}
	if memWriter != nil {
		screenOpts = append(screenOpts, screen.WithMemory(memWriter))
	}
	if deps.Metrics != nil {
		screenOpts = append(screenOpts, screen.WithMetrics(deps.Metrics))
	}
	if deps.Capturer != nil && deps.OCR != nil {
		m.screenLoop = screen.NewLoop(screen.Config{
			CaptureInterval: time.Duration(cfg.Screen.CaptureRateSeconds * float64(time.Second)),
			StableCount:     cfg.Screen.StableCountThreshold,
			MinTextLength:   cfg.Screen.MinTextLength,
			PhashGrid:       cfg.Screen.PhashGrid,
		}, deps.Capturer, deps.OCR, screenOpts...)
	}

	m.supervisor = listen.NewSupervisor(listen.SupervisorConfig{
		SampleRate:         cfg.Audio.SampleRate,
		VADThreshold:       cfg.Audio.VADThreshold,
		MaxSilenceChunks:   cfg.Audio.MaxSilenceChunks,
		CaptureSystemAudio: cfg.Audio.CaptureSystemAudio == nil || *cfg.Audio.CaptureSystemAudio,
		LoopbackDevices:    cfg.Audio.LoopbackDevices,
		ExcludedDevices:    cfg.Audio.ExcludedDevices,
	}, deps.Platform, deps.VADFactory, deps.STT, m.dispatcher.Enqueue, deps.Metrics)

	return m
}

// Start launches the dispatcher, screen loop and audio supervisor.
// Idempotent; a second call is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		m.dispatcher.Run(groupCtx)
		return nil
	})

	if m.screenLoop != nil && (m.cfg.Screen.Enabled == nil || *m.cfg.Screen.Enabled) {
		group.Go(func() error {
			m.screenLoop.Run(groupCtx)
			return nil
		})
	} else {
		m.logger.Info("screen capture disabled")
	}

	// Audio failure is not fatal: screen analysis and chat keep working.
	if err := m.supervisor.Start(groupCtx); err != nil {
		m.logger.Warn("audio capture unavailable", "err", err)
	}

	m.runCtx = runCtx
	m.cancel = cancel
	m.group = group
	m.running = true
	m.logger.Info("monitor started")
	return nil
}

// Stop tears the runtime down: it cancels the run context, which aborts any
// in-flight auto-answer stream, waits for the loops, and flushes pending
// memory writes. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	group := m.group
	m.mu.Unlock()

	m.supervisor.Stop()
	cancel()
	_ = group.Wait()
	m.answerWG.Wait()
	if m.batcher != nil {
		m.batcher.Stop()
	}
	m.logger.Info("monitor stopped")
}

// handleTranscript records the item, broadcasts it and runs registered
// callbacks.
func (m *Monitor) handleTranscript(text, source string) {
	m.cbMu.Lock()
	m.lastItem = text
	callbacks := m.onTranscripts
	m.cbMu.Unlock()

	m.hub.Broadcast(hub.Transcript(text, source))
	for _, fn := range callbacks {
		fn(text, source)
	}
}

// onQuestion runs the auto-answer trigger without blocking the dispatch
// loop. The trigger shares the run context so Stop cancels any in-flight
// answer stream.
func (m *Monitor) onQuestion(question string) {
	m.mu.Lock()
	running, ctx := m.running, m.runCtx
	m.mu.Unlock()
	if !running {
		return
	}

	m.cbMu.Lock()
	callbacks := m.onQuestions
	m.cbMu.Unlock()
	for _, fn := range callbacks {
		fn(question)
	}

	m.answerWG.Add(1)
	go func() {
		defer m.answerWG.Done()
		m.controller.Trigger(ctx, question)
	}()
}

// OnTranscript registers fn to run for every dispatched transcript item.
// Registration is not synchronized with Start; register before starting.
func (m *Monitor) OnTranscript(fn func(text, source string)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onTranscripts = append(m.onTranscripts, fn)
}

// OnQuestionDetected registers fn to run for every detected question,
// before the auto-answer trigger.
func (m *Monitor) OnQuestionDetected(fn func(question string)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onQuestions = append(m.onQuestions, fn)
}

// LatestTranscript returns the text of the most recently dispatched item,
// or "".
func (m *Monitor) LatestTranscript() string {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	return m.lastItem
}

// SetRecording toggles memory persistence for audio and screen.
func (m *Monitor) SetRecording(enabled bool) {
	m.recording.Store(enabled)
	m.logger.Info("recording toggled", "enabled", enabled)
}

// Recording reports whether memory persistence is on.
func (m *Monitor) Recording() bool { return m.recording.Load() }

// SetAutoAnswer toggles question-driven answering.
func (m *Monitor) SetAutoAnswer(enabled bool) {
	m.controller.SetEnabled(enabled)
}

// AutoAnswer reports whether question-driven answering is on.
func (m *Monitor) AutoAnswer() bool { return m.controller.Enabled() }

// SetQuestionSources updates which transcript sources can trigger answers.
func (m *Monitor) SetQuestionSources(sources []string) {
	m.dispatcher.SetQuestionSources(sources)
}

// RecentTranscript renders the transcript items within the window.
func (m *Monitor) RecentTranscript(window time.Duration) string {
	return m.dispatcher.Ring().Window(window, time.Now())
}

// LatestText returns the most recent OCR text, or "".
func (m *Monitor) LatestText() string {
	if m.screenLoop == nil {
		return ""
	}
	if snap := m.screenLoop.Latest(); snap != nil {
		return snap.Text
	}
	return ""
}

// LatestImage returns the most recent screen capture as JPEG, or nil.
func (m *Monitor) LatestImage() []byte {
	if m.screenLoop == nil {
		return nil
	}
	if snap := m.screenLoop.Latest(); snap != nil {
		return snap.JPEG
	}
	return nil
}

// Analyzer exposes the chat analysis entry point for the server.
func (m *Monitor) Analyzer() *analysis.Analyzer { return m.analyzer }
