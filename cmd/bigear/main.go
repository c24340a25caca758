// Command bigear is the listening assistant server: device audio capture,
// screen analysis, vector memory and the WebSocket/REST surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/bigear-ai/bigear/internal/analysis"
	"github.com/bigear-ai/bigear/internal/config"
	"github.com/bigear-ai/bigear/internal/health"
	"github.com/bigear-ai/bigear/internal/hub"
	"github.com/bigear-ai/bigear/internal/monitor"
	"github.com/bigear-ai/bigear/internal/observe"
	"github.com/bigear-ai/bigear/internal/resilience"
	"github.com/bigear-ai/bigear/internal/screen"
	"github.com/bigear-ai/bigear/internal/server"
	"github.com/bigear-ai/bigear/pkg/audio"
	"github.com/bigear-ai/bigear/pkg/audio/malgo"
	"github.com/bigear-ai/bigear/pkg/memory"
	"github.com/bigear-ai/bigear/pkg/memory/postgres"
	"github.com/bigear-ai/bigear/pkg/provider/embeddings"
	ollamaembed "github.com/bigear-ai/bigear/pkg/provider/embeddings/ollama"
	oaembed "github.com/bigear-ai/bigear/pkg/provider/embeddings/openai"
	"github.com/bigear-ai/bigear/pkg/provider/llm"
	"github.com/bigear-ai/bigear/pkg/provider/llm/anyllm"
	"github.com/bigear-ai/bigear/pkg/provider/llm/gemini"
	ollamallm "github.com/bigear-ai/bigear/pkg/provider/llm/ollama"
	"github.com/bigear-ai/bigear/pkg/provider/ocr"
	"github.com/bigear-ai/bigear/pkg/provider/ocr/httpocr"
	"github.com/bigear-ai/bigear/pkg/provider/stt"
	"github.com/bigear-ai/bigear/pkg/provider/stt/whisper"
	"github.com/bigear-ai/bigear/pkg/provider/vad"
	"github.com/bigear-ai/bigear/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "bigear: config file %q not found (copy configs/example.yaml to get started)\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "bigear: %v\n", err)
		}
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("bigear starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "bigear"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// Long-term memory is optional: without a DSN the runtime still listens
	// and answers, it just forgets.
	var mem *memory.Service
	var pool *memory.Pool
	if cfg.Memory.PostgresDSN != "" {
		if providers.Embeddings == nil {
			slog.Error("memory.postgres_dsn is set but no embeddings provider is configured")
			return 1
		}
		factory := func(ctx context.Context) (memory.VectorStore, error) {
			return postgres.NewStore(ctx, cfg.Memory.PostgresDSN, providers.Embeddings)
		}
		pool, err = memory.NewPool(ctx, factory, cfg.Memory.PoolSize)
		if err != nil {
			slog.Error("failed to connect to vector store", "err", err)
			return 1
		}
		defer pool.Close()

		mem = memory.NewService(pool, memory.ServiceConfig{
			PruneThreshold:       cfg.Memory.PruneThreshold,
			PruneKeep:            cfg.Memory.PruneKeep,
			ProtectedAccessCount: cfg.Memory.ProtectedAccessCount,
			QueryK:               cfg.Memory.QueryDefaultK,
			RecencyWeight:        cfg.Memory.RecencyWeight,
			AccessWeight:         cfg.Memory.AccessWeight,
			UniquenessWeight:     cfg.Memory.UniquenessWeight,
			ClusterThreshold:     cfg.Memory.ClusterThreshold,
			DupThreshold:         cfg.Memory.DupThreshold,
		}, slog.Default())
	}

	broadcast := hub.New(hub.WithMetrics(metrics))

	deps := monitor.Deps{
		Platform:   providers.Audio,
		VADFactory: providers.VAD,
		STT:        providers.STT,
		OCR:        providers.OCR,
		Capturer:   &screen.DisplayCapturer{},
		LLM:        providers.LLM,
		Hub:        broadcast,
		Metrics:    metrics,
	}
	if mem != nil {
		deps.Memory = mem
		deps.Chunker = memory.NewChunker(providers.Embeddings)
	}
	mon := monitor.New(cfg, deps)

	checkers := []health.Checker{
		{Name: "llm", Check: func(context.Context) error {
			if providers.LLM == nil {
				return errors.New("no llm provider")
			}
			return nil
		}},
	}
	if mem != nil {
		checkers = append(checkers, health.Checker{Name: "memory", Check: func(ctx context.Context) error {
			_, err := mem.Count(ctx)
			return err
		}})
	}

	srvDeps := server.Deps{
		Runtime:  mon,
		Answerer: mon.Analyzer(),
		Hub:      broadcast,
		Health:   health.New(checkers...),
		Metrics:  metrics,
	}
	if mem != nil {
		srvDeps.Memory = mem
	}
	srv := server.New(cfg.Server.ListenAddr, srvDeps)

	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyHotReload(mon, logLevel, config.Diff(old, new), new)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	if err := mon.Start(ctx); err != nil {
		slog.Error("failed to start monitor", "err", err)
		return 1
	}
	defer mon.Stop()

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// applyHotReload pushes safely reloadable config changes into the runtime.
func applyHotReload(mon *monitor.Monitor, level *slog.LevelVar, diff config.ConfigDiff, cfg *config.Config) {
	if !diff.Any() {
		return
	}
	if diff.LogLevelChanged {
		level.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.QuestionSourcesChanged {
		mon.SetQuestionSources(cfg.Audio.QuestionSources)
		slog.Info("question sources changed", "sources", cfg.Audio.QuestionSources)
	}
	if diff.AutoAnswerChanged {
		mon.SetAutoAnswer(cfg.AutoAnswer.Enabled == nil || *cfg.AutoAnswer.Enabled)
		slog.Info("auto-answer settings changed")
	}
	if diff.ScreenChanged {
		slog.Info("screen settings changed; restart to apply capture-loop changes")
	}
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// providerSet holds the instantiated providers the runtime is built from.
type providerSet struct {
	LLM        llm.Provider
	STT        stt.Provider
	OCR        ocr.Provider
	Embeddings embeddings.Provider
	VAD        vad.Factory
	Audio      audio.Platform
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// gemini uses the native SDK for image parts and tool calls; everything
	// else routes through any-llm.
	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		return gemini.New(context.Background(), apiKey, entry.Model)
	})

	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		return ollamallm.New(entry.BaseURL, entry.Model)
	})

	for _, providerName := range []string{"openai", "anthropic", "deepseek", "mistral", "groq"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.ModelPath, opts...)
	})

	reg.RegisterOCR("rapidocr", func(entry config.ProviderEntry) (ocr.Provider, error) {
		return httpocr.New(entry.BaseURL), nil
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Factory, error) {
		return energy.NewFactory(), nil
	})

	reg.RegisterAudio("malgo", func(entry config.ProviderEntry) (audio.Platform, error) {
		return malgo.New()
	})
}

// buildProviders instantiates every configured provider. The LLM is wrapped
// in a circuit breaker so a flapping backend degrades instead of failing
// every call.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (providerSet, error) {
	var set providerSet
	var err error

	if cfg.Providers.LLM.Name == "" {
		return set, errors.New("providers.llm is required")
	}
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return set, fmt.Errorf("llm: %w", err)
	}
	set.LLM = resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})

	if cfg.Providers.STT.Name != "" {
		sttPrimary, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return set, fmt.Errorf("stt: %w", err)
		}
		set.STT = resilience.NewSTTFallback(sttPrimary, cfg.Providers.STT.Name, resilience.FallbackConfig{})
	}

	if cfg.Providers.OCR.Name != "" {
		if set.OCR, err = reg.CreateOCR(cfg.Providers.OCR); err != nil {
			return set, fmt.Errorf("ocr: %w", err)
		}
	}

	if cfg.Providers.Embeddings.Name != "" {
		if set.Embeddings, err = reg.CreateEmbeddings(cfg.Providers.Embeddings); err != nil {
			return set, fmt.Errorf("embeddings: %w", err)
		}
	}

	vadEntry := cfg.Providers.VAD
	if vadEntry.Name == "" {
		vadEntry.Name = "energy"
	}
	if set.VAD, err = reg.CreateVAD(vadEntry); err != nil {
		return set, fmt.Errorf("vad: %w", err)
	}

	audioEntry := cfg.Providers.Audio
	if audioEntry.Name == "" {
		audioEntry.Name = "malgo"
	}
	if set.Audio, err = reg.CreateAudio(audioEntry); err != nil {
		return set, fmt.Errorf("audio: %w", err)
	}

	return set, nil
}

// optString reads a string value out of a provider entry's free-form
// options.
func optString(options map[string]any, key string) string {
	if options == nil {
		return ""
	}
	if v, ok := options[key].(string); ok {
		return v
	}
	return ""
}
