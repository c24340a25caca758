package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bigear-ai/bigear/internal/observe"
	"github.com/bigear-ai/bigear/pkg/memory"
	"github.com/bigear-ai/bigear/pkg/provider/llm"
)

// Defaults for the analyzer.
const (
	DefaultContextMaxLength = 5000
	DefaultMemoryTopK       = 5
)

// storeMemoryTool is offered to the model on every analysis request so it
// can persist facts the user asks it to remember.
var storeMemoryTool = llm.ToolDefinition{
	Name:        "store_memory",
	Description: "Stores a new memory in the database. Use this when the user explicitly asks to remember something or when information seems highly important and persistent.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":   map[string]any{"type": "string"},
			"source": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	},
}

// MemoryService is the slice of the memory layer the analyzer needs: query
// for retrieval-augmented context, add for tool-call writes.
type MemoryService interface {
	Query(ctx context.Context, text string, k int, filter memory.Filter) []string
	Add(ctx context.Context, text, source string, extra map[string]string) (string, error)
}

// Config tunes an [Analyzer]. Zero-value fields get defaults.
type Config struct {
	// ContextMaxLength truncates the screen context before prompting.
	ContextMaxLength int

	// MemoryTopK is how many memory records to retrieve per query.
	MemoryTopK int
}

// Analyzer composes prompts, streams answers and executes store_memory tool
// calls. It is safe for concurrent use; each Analyze call owns its stream.
type Analyzer struct {
	provider llm.Provider
	mem      MemoryService
	cfg      Config
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithMemory attaches the memory service for retrieval and tool writes.
func WithMemory(mem MemoryService) Option {
	return func(a *Analyzer) { a.mem = mem }
}

// WithMetrics attaches the metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New creates an Analyzer on top of the given provider.
func New(provider llm.Provider, cfg Config, opts ...Option) *Analyzer {
	if cfg.ContextMaxLength <= 0 {
		cfg.ContextMaxLength = DefaultContextMaxLength
	}
	if cfg.MemoryTopK <= 0 {
		cfg.MemoryTopK = DefaultMemoryTopK
	}
	a := &Analyzer{
		provider: provider,
		cfg:      cfg,
		logger:   slog.Default().With("component", "analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Analyze streams an answer for the given screen context and query. The
// returned channel yields answer text only; tool calls are executed against
// the memory service and never forwarded. The channel closes when the stream
// ends, fails, or ctx is cancelled. A non-nil error is returned only when the
// stream cannot start (e.g. [llm.ErrNotConfigured]).
func (a *Analyzer) Analyze(ctx context.Context, contextText, userQuery string, imageJPEG []byte) (<-chan string, error) {
	if len(contextText) > a.cfg.ContextMaxLength {
		contextText = contextText[:a.cfg.ContextMaxLength]
	}

	var memCtx string
	if a.mem != nil && userQuery != "" {
		records := a.mem.Query(ctx, userQuery, a.cfg.MemoryTopK, memory.Filter{})
		memCtx = memoryContext(records)
	}

	req := llm.Request{
		System:    systemPrompt,
		Prompt:    analysisPrompt(contextText, memCtx, userQuery),
		ImageJPEG: imageJPEG,
		Tools:     []llm.ToolDefinition{storeMemoryTool},
	}

	start := time.Now()
	chunks, err := a.provider.Stream(ctx, req)
	if err != nil {
		a.metrics.RecordProviderError(ctx, "llm", "analyze")
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer func() {
			a.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		}()
		for c := range chunks {
			if c.Err != nil {
				a.metrics.RecordProviderError(ctx, "llm", "stream")
				a.logger.Error("llm stream failed", "err", c.Err)
				return
			}
			for _, tc := range c.ToolCalls {
				a.execToolCall(ctx, tc)
			}
			if c.Text == "" {
				continue
			}
			select {
			case out <- c.Text:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// execToolCall handles a completed tool invocation. Unknown tools and bad
// arguments are logged and dropped; tool failures never interrupt the answer.
func (a *Analyzer) execToolCall(ctx context.Context, tc llm.ToolCall) {
	if tc.Name != storeMemoryTool.Name {
		a.logger.Warn("model requested unknown tool", "tool", tc.Name)
		return
	}
	if a.mem == nil {
		return
	}

	var args struct {
		Text   string `json:"text"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		a.logger.Warn("bad store_memory arguments", "err", err)
		return
	}
	if args.Source == "" {
		args.Source = "user"
	}
	if strings.TrimSpace(args.Text) == "" {
		return
	}

	id, err := a.mem.Add(ctx, args.Text, args.Source, nil)
	if err != nil {
		a.logger.Warn("store_memory tool failed", "err", err)
		return
	}
	a.metrics.RecordMemoryAdd(ctx, args.Source, 1)
	a.logger.Info("tool stored memory", "id", id, "source", args.Source)
}

// Summarize compresses a transcript for context reuse. On any failure the
// input is returned unchanged.
func (a *Analyzer) Summarize(ctx context.Context, transcript string, maxLength int) string {
	if strings.TrimSpace(transcript) == "" {
		return transcript
	}

	chunks, err := a.provider.Stream(ctx, llm.Request{
		System: summarizeSystemPrompt,
		Prompt: summarizePrompt(transcript, maxLength),
	})
	if err != nil {
		a.logger.Warn("summarization failed, returning input", "err", err)
		return transcript
	}

	var b strings.Builder
	for c := range chunks {
		if c.Err != nil {
			a.logger.Warn("summarization stream failed, returning input", "err", c.Err)
			return transcript
		}
		b.WriteString(c.Text)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return transcript
	}
	return out
}
