// Package config provides the configuration schema, loader, provider
// registry and file watcher for the bigear listener.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; [ApplyDefaults] fills every
// unset knob.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Audio      AudioConfig      `yaml:"audio"`
	Screen     ScreenConfig     `yaml:"screen"`
	Memory     MemoryConfig     `yaml:"memory"`
	AutoAnswer AutoAnswerConfig `yaml:"auto_answer"`
	LLM        LLMConfig        `yaml:"llm"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8900").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which implementation to use for each pipeline
// stage. Each entry's Name selects a factory registered in the [Registry].
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	STT        ProviderEntry `yaml:"stt"`
	OCR        ProviderEntry `yaml:"ocr"`
	Embeddings ProviderEntry `yaml:"embeddings"`
	VAD        ProviderEntry `yaml:"vad"`
	Audio      ProviderEntry `yaml:"audio"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "gemini", "whisper").
	Name string `yaml:"name"`

	// APIKey is the provider's authentication key, if any. May also be
	// supplied via environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// ModelPath points at a local model file (whisper.cpp weights).
	ModelPath string `yaml:"model_path"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// AudioConfig tunes capture and voice-activity gating.
type AudioConfig struct {
	// SampleRate of capture in Hz. The VAD chunk size assumes 16000.
	SampleRate int `yaml:"sample_rate"`

	// VADThreshold is the speech probability above which a chunk counts as
	// voiced.
	VADThreshold float64 `yaml:"vad_threshold"`

	// MaxSilenceChunks is how many consecutive unvoiced chunks end an
	// utterance.
	MaxSilenceChunks int `yaml:"max_silence_chunks"`

	// CaptureSystemAudio enables loopback/virtual capture devices.
	CaptureSystemAudio *bool `yaml:"capture_system_audio"`

	// LoopbackDevices are name substrings that classify a device as system
	// audio.
	LoopbackDevices []string `yaml:"loopback_devices"`

	// ExcludedDevices are name substrings that exclude a device entirely.
	ExcludedDevices []string `yaml:"excluded_devices"`

	// QuestionSources lists which sources ("system", "user") feed question
	// detection.
	QuestionSources []string `yaml:"question_sources"`
}

// ScreenConfig tunes the screen-capture loop.
type ScreenConfig struct {
	// Enabled turns the screen loop on.
	Enabled *bool `yaml:"enabled"`

	// CaptureRateSeconds is the capture interval.
	CaptureRateSeconds float64 `yaml:"capture_rate_seconds"`

	// StableCountThreshold is how many consecutive identical OCR results
	// make the text "stable" and eligible for memory persistence.
	StableCountThreshold int `yaml:"stable_count_threshold"`

	// MinTextLength drops OCR results shorter than this.
	MinTextLength int `yaml:"min_text_length"`

	// PhashGrid is the side length of the perceptual-hash grid.
	PhashGrid int `yaml:"phash_grid"`
}

// MemoryConfig tunes the vector-memory subsystem.
type MemoryConfig struct {
	// PostgresDSN is the connection string for the pgvector store. Empty
	// disables persistent memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// PoolSize is the bounded store-client pool size.
	PoolSize int `yaml:"pool_size"`

	// QueryDefaultK is the default similarity top-k.
	QueryDefaultK int `yaml:"query_default_k"`

	// PruneThreshold and PruneKeep bound the collection size.
	PruneThreshold int `yaml:"prune_threshold"`
	PruneKeep      int `yaml:"prune_keep"`

	// ProtectedAccessCount protects frequently queried records from pruning.
	ProtectedAccessCount int `yaml:"protected_access_count"`

	// RecencyWeight, AccessWeight and UniquenessWeight make up the
	// importance score. They should sum to 1.
	RecencyWeight    float64 `yaml:"recency_weight"`
	AccessWeight     float64 `yaml:"access_weight"`
	UniquenessWeight float64 `yaml:"uniqueness_weight"`

	// ClusterThreshold scales neighbor distances into uniqueness scores.
	ClusterThreshold float64 `yaml:"cluster_threshold"`

	// DupThreshold is the similarity bar for deduplication.
	DupThreshold float64 `yaml:"dup_threshold"`
}

// AutoAnswerConfig tunes the automatic question answering.
type AutoAnswerConfig struct {
	// Enabled turns auto-answer on.
	Enabled *bool `yaml:"enabled"`

	// CooldownSeconds is the minimum gap between two auto-answers.
	CooldownSeconds float64 `yaml:"cooldown_seconds"`

	// MinQuestionLength drops detected questions shorter than this.
	MinQuestionLength int `yaml:"min_question_length"`

	// ContextWindowSeconds is how far back the transcript context reaches.
	ContextWindowSeconds float64 `yaml:"context_window_seconds"`

	// ScreenTruncate caps the screen text included in the prompt.
	ScreenTruncate int `yaml:"screen_truncate"`
}

// LLMConfig tunes prompt assembly.
type LLMConfig struct {
	// ContextMaxLength caps the assembled context text in characters.
	ContextMaxLength int `yaml:"context_max_length"`

	// MemoryTopK is how many memory records are retrieved per analysis.
	MemoryTopK int `yaml:"memory_top_k"`
}

// Defaults matching the documented configuration knobs.
const (
	DefaultListenAddr           = ":8900"
	DefaultSampleRate           = 16000
	DefaultVADThreshold         = 0.5
	DefaultMaxSilenceChunks     = 15
	DefaultCaptureRateSeconds   = 1.0
	DefaultStableCountThreshold = 2
	DefaultMinTextLength        = 50
	DefaultPhashGrid            = 32
	DefaultPoolSize             = 3
	DefaultQueryK               = 5
	DefaultPruneThreshold       = 10000
	DefaultPruneKeep            = 5000
	DefaultProtectedAccess      = 5
	DefaultRecencyWeight        = 0.25
	DefaultAccessWeight         = 0.50
	DefaultUniquenessWeight     = 0.25
	DefaultClusterThreshold     = 0.75
	DefaultDupThreshold         = 0.92
	DefaultCooldownSeconds      = 10.0
	DefaultMinQuestionLength    = 10
	DefaultContextWindowSecs    = 120.0
	DefaultScreenTruncate       = 2000
	DefaultContextMaxLength     = 5000
)

// DefaultLoopbackDevices classify a capture device as system audio by name.
var DefaultLoopbackDevices = []string{"blackhole", "vb-cable", "loopback", "aggregate"}

// DefaultExcludedDevices are skipped entirely.
var DefaultExcludedDevices = []string{"iphone", "teams"}

// DefaultQuestionSources feed question detection.
var DefaultQuestionSources = []string{"system"}

func boolPtr(b bool) *bool { return &b }

// ApplyDefaults fills every unset field with its documented default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.VADThreshold == 0 {
		cfg.Audio.VADThreshold = DefaultVADThreshold
	}
	if cfg.Audio.MaxSilenceChunks == 0 {
		cfg.Audio.MaxSilenceChunks = DefaultMaxSilenceChunks
	}
	if cfg.Audio.CaptureSystemAudio == nil {
		cfg.Audio.CaptureSystemAudio = boolPtr(true)
	}
	if cfg.Audio.LoopbackDevices == nil {
		cfg.Audio.LoopbackDevices = DefaultLoopbackDevices
	}
	if cfg.Audio.ExcludedDevices == nil {
		cfg.Audio.ExcludedDevices = DefaultExcludedDevices
	}
	if cfg.Audio.QuestionSources == nil {
		cfg.Audio.QuestionSources = DefaultQuestionSources
	}

	if cfg.Screen.Enabled == nil {
		cfg.Screen.Enabled = boolPtr(true)
	}
	if cfg.Screen.CaptureRateSeconds == 0 {
		cfg.Screen.CaptureRateSeconds = DefaultCaptureRateSeconds
	}
	if cfg.Screen.StableCountThreshold == 0 {
		cfg.Screen.StableCountThreshold = DefaultStableCountThreshold
	}
	if cfg.Screen.MinTextLength == 0 {
		cfg.Screen.MinTextLength = DefaultMinTextLength
	}
	if cfg.Screen.PhashGrid == 0 {
		cfg.Screen.PhashGrid = DefaultPhashGrid
	}

	if cfg.Memory.PoolSize == 0 {
		cfg.Memory.PoolSize = DefaultPoolSize
	}
	if cfg.Memory.QueryDefaultK == 0 {
		cfg.Memory.QueryDefaultK = DefaultQueryK
	}
	if cfg.Memory.PruneThreshold == 0 {
		cfg.Memory.PruneThreshold = DefaultPruneThreshold
	}
	if cfg.Memory.PruneKeep == 0 {
		cfg.Memory.PruneKeep = DefaultPruneKeep
	}
	if cfg.Memory.ProtectedAccessCount == 0 {
		cfg.Memory.ProtectedAccessCount = DefaultProtectedAccess
	}
	if cfg.Memory.RecencyWeight == 0 && cfg.Memory.AccessWeight == 0 && cfg.Memory.UniquenessWeight == 0 {
		cfg.Memory.RecencyWeight = DefaultRecencyWeight
		cfg.Memory.AccessWeight = DefaultAccessWeight
		cfg.Memory.UniquenessWeight = DefaultUniquenessWeight
	}
	if cfg.Memory.ClusterThreshold == 0 {
		cfg.Memory.ClusterThreshold = DefaultClusterThreshold
	}
	if cfg.Memory.DupThreshold == 0 {
		cfg.Memory.DupThreshold = DefaultDupThreshold
	}

	if cfg.AutoAnswer.Enabled == nil {
		cfg.AutoAnswer.Enabled = boolPtr(true)
	}
	if cfg.AutoAnswer.CooldownSeconds == 0 {
		cfg.AutoAnswer.CooldownSeconds = DefaultCooldownSeconds
	}
	if cfg.AutoAnswer.MinQuestionLength == 0 {
		cfg.AutoAnswer.MinQuestionLength = DefaultMinQuestionLength
	}
	if cfg.AutoAnswer.ContextWindowSeconds == 0 {
		cfg.AutoAnswer.ContextWindowSeconds = DefaultContextWindowSecs
	}
	if cfg.AutoAnswer.ScreenTruncate == 0 {
		cfg.AutoAnswer.ScreenTruncate = DefaultScreenTruncate
	}

	if cfg.LLM.ContextMaxLength == 0 {
		cfg.LLM.ContextMaxLength = DefaultContextMaxLength
	}
	if cfg.LLM.MemoryTopK == 0 {
		cfg.LLM.MemoryTopK = DefaultQueryK
	}
}
