package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"llm":        {"gemini", "ollama", "openai", "anthropic", "deepseek", "mistral", "groq", "llamacpp"},
	"stt":        {"whisper"},
	"ocr":        {"rapidocr"},
	"embeddings": {"openai", "ollama"},
	"vad":        {"energy"},
	"audio":      {"malgo"},
}

// Load reads the YAML configuration file at path, applies defaults and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown YAML keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found; soft issues are logged
// as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("ocr", cfg.Providers.OCR.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.VADThreshold < 0 || cfg.Audio.VADThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.vad_threshold %.2f is out of range [0, 1]", cfg.Audio.VADThreshold))
	}
	if cfg.Audio.MaxSilenceChunks < 1 {
		errs = append(errs, fmt.Errorf("audio.max_silence_chunks %d must be at least 1", cfg.Audio.MaxSilenceChunks))
	}

	if cfg.Screen.CaptureRateSeconds <= 0 {
		errs = append(errs, fmt.Errorf("screen.capture_rate_seconds %.2f must be positive", cfg.Screen.CaptureRateSeconds))
	}
	if cfg.Screen.PhashGrid < 2 {
		errs = append(errs, fmt.Errorf("screen.phash_grid %d must be at least 2", cfg.Screen.PhashGrid))
	}

	if cfg.Memory.PruneKeep > cfg.Memory.PruneThreshold {
		errs = append(errs, fmt.Errorf("memory.prune_keep %d exceeds memory.prune_threshold %d", cfg.Memory.PruneKeep, cfg.Memory.PruneThreshold))
	}
	weightSum := cfg.Memory.RecencyWeight + cfg.Memory.AccessWeight + cfg.Memory.UniquenessWeight
	if weightSum < 0.99 || weightSum > 1.01 {
		errs = append(errs, fmt.Errorf("memory importance weights sum to %.2f; they must sum to 1", weightSum))
	}
	if cfg.Memory.DupThreshold <= cfg.Memory.ClusterThreshold {
		errs = append(errs, fmt.Errorf("memory.dup_threshold %.2f must exceed memory.cluster_threshold %.2f", cfg.Memory.DupThreshold, cfg.Memory.ClusterThreshold))
	}

	if cfg.AutoAnswer.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("auto_answer.cooldown_seconds %.2f must not be negative", cfg.AutoAnswer.CooldownSeconds))
	}

	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; long-term memory will not be available")
	}
	if cfg.Providers.LLM.Name == "" && cfg.AutoAnswer.Enabled != nil && *cfg.AutoAnswer.Enabled {
		slog.Warn("auto_answer is enabled but no LLM provider is configured; questions will go unanswered")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
