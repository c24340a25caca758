// Package server exposes the runtime over HTTP: a WebSocket frame stream
// with chat, REST toggles, health probes and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigear-ai/bigear/internal/health"
	"github.com/bigear-ai/bigear/internal/hub"
	"github.com/bigear-ai/bigear/internal/observe"
)

// Rate limiting for inbound WebSocket messages, per connection.
const (
	RateLimitMessages = 10
	RateLimitWindow   = 10 * time.Second
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// defaultTranscriptWindow backs /api/transcript when no window is given.
const defaultTranscriptWindow = 120 * time.Second

// Runtime is the slice of the monitor the server needs.
type Runtime interface {
	SetRecording(enabled bool)
	Recording() bool
	SetAutoAnswer(enabled bool)
	AutoAnswer() bool
	RecentTranscript(window time.Duration) string
	LatestText() string
	LatestImage() []byte
}

// Answerer streams chat answers.
type Answerer interface {
	Analyze(ctx context.Context, contextText, userQuery string, imageJPEG []byte) (<-chan string, error)
}

// MemoryMaintainer runs on-demand maintenance over long-term memory.
type MemoryMaintainer interface {
	Dedup(ctx context.Context) error
}

// Deps are the server's collaborators. Memory may be nil when no store is
// configured.
type Deps struct {
	Runtime  Runtime
	Answerer Answerer
	Memory   MemoryMaintainer
	Hub      *hub.Hub
	Health   *health.Handler
	Metrics  *observe.Metrics
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	addr     string
	runtime  Runtime
	answerer Answerer
	memory   MemoryMaintainer
	hub      *hub.Hub
	health   *health.Handler
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// New creates a server listening on addr once Run is called.
func New(addr string, deps Deps) *Server {
	s := &Server{
		addr:     addr,
		runtime:  deps.Runtime,
		answerer: deps.Answerer,
		memory:   deps.Memory,
		hub:      deps.Hub,
		health:   deps.Health,
		metrics:  deps.Metrics,
		logger:   slog.Default().With("component", "server"),
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler builds the full HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/recording", s.handleRecordingGet)
	mux.HandleFunc("POST /api/recording", s.handleRecordingSet)
	mux.HandleFunc("GET /api/auto-answer", s.handleAutoAnswerGet)
	mux.HandleFunc("POST /api/auto-answer", s.handleAutoAnswerSet)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/capture", s.handleCapture)
	mux.HandleFunc("POST /api/memory/dedup", s.handleMemoryDedup)

	if s.health != nil {
		s.health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	return corsMiddleware(observe.Middleware(s.metrics)(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// chatMessage is the only inbound WebSocket message type.
type chatMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter is a per-connection sliding window.
type rateLimiter struct {
	mu     sync.Mutex
	stamps []time.Time
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-RateLimitWindow)
	valid := r.stamps[:0]
	for _, t := range r.stamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.stamps = valid

	if len(r.stamps) >= RateLimitMessages {
		return false
	}
	r.stamps = append(r.stamps, time.Now())
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.logger.Info("websocket connected", "id", sub.ID(), "remote", r.RemoteAddr)

	// Single writer: everything for this connection flows through the
	// subscriber queue, so broadcast and chat frames never interleave
	// mid-write.
	go func() {
		for frame := range sub.Frames() {
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				cancel()
				return
			}
		}
	}()

	limiter := &rateLimiter{}
	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			s.logger.Debug("websocket closed", "id", sub.ID(), "err", err)
			return
		}

		var msg chatMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "chat" {
			continue
		}
		if !limiter.allow() {
			s.hub.Send(sub, hub.Error("rate limit exceeded"))
			continue
		}
		s.handleChat(ctx, sub, msg.Message)
	}
}

// handleChat streams one answer to the requesting subscriber only.
func (s *Server) handleChat(ctx context.Context, sub *hub.Subscriber, query string) {
	s.logger.Info("chat message", "id", sub.ID(), "query", query)
	s.hub.Send(sub, hub.Start("assistant"))
	defer s.hub.Send(sub, hub.Done())

	stream, err := s.answerer.Analyze(ctx, s.runtime.LatestText(), query, s.runtime.LatestImage())
	if err != nil {
		s.logger.Error("chat analysis failed", "err", err)
		s.hub.Send(sub, hub.Chunk("Error: "+err.Error()))
		return
	}

	for {
		select {
		case token, ok := <-stream:
			if !ok {
				return
			}
			s.hub.Send(sub, hub.Chunk(token))
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleRecordingGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]bool{"enabled": s.runtime.Recording()})
}

func (s *Server) handleRecordingSet(w http.ResponseWriter, r *http.Request) {
	enabled, ok := readToggle(w, r)
	if !ok {
		return
	}
	s.runtime.SetRecording(enabled)
	writeJSON(w, map[string]bool{"enabled": enabled})
}

func (s *Server) handleAutoAnswerGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]bool{"enabled": s.runtime.AutoAnswer()})
}

func (s *Server) handleAutoAnswerSet(w http.ResponseWriter, r *http.Request) {
	enabled, ok := readToggle(w, r)
	if !ok {
		return
	}
	s.runtime.SetAutoAnswer(enabled)
	writeJSON(w, map[string]bool{"enabled": enabled})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	window := defaultTranscriptWindow
	if v := r.URL.Query().Get("seconds"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs <= 0 {
			http.Error(w, `{"error":"invalid seconds"}`, http.StatusBadRequest)
			return
		}
		window = time.Duration(secs * float64(time.Second))
	}
	writeJSON(w, map[string]string{"transcript": s.runtime.RecentTranscript(window)})
}

// textPreviewLimit caps the screen text echoed by /api/capture.
const textPreviewLimit = 500

func (s *Server) handleCapture(w http.ResponseWriter, _ *http.Request) {
	text := s.runtime.LatestText()
	if len(text) > textPreviewLimit {
		text = text[:textPreviewLimit] + "..."
	}
	writeJSON(w, map[string]string{"extracted_text": text})
}

// handleMemoryDedup runs semantic deduplication over the memory store on
// demand.
func (s *Server) handleMemoryDedup(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		http.Error(w, `{"error":"memory not configured"}`, http.StatusServiceUnavailable)
		return
	}
	if err := s.memory.Dedup(r.Context()); err != nil {
		s.logger.Error("memory dedup failed", "err", err)
		http.Error(w, `{"error":"dedup failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// readToggle parses {"enabled": bool} request bodies.
func readToggle(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		http.Error(w, `{"error":"body must be {\"enabled\": bool}"}`, http.StatusBadRequest)
		return false, false
	}
	return *body.Enabled, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
