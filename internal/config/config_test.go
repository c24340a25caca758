package config_test

import (
	"testing"

	"github.com/bigear-ai/bigear/internal/config"
)

func defaultConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults_FillsEverything(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate: got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.VADThreshold != 0.5 {
		t.Errorf("vad_threshold: got %v", cfg.Audio.VADThreshold)
	}
	if cfg.Audio.MaxSilenceChunks != 15 {
		t.Errorf("max_silence_chunks: got %d", cfg.Audio.MaxSilenceChunks)
	}
	if cfg.Audio.CaptureSystemAudio == nil || !*cfg.Audio.CaptureSystemAudio {
		t.Error("capture_system_audio should default to true")
	}
	if len(cfg.Audio.ExcludedDevices) != 2 {
		t.Errorf("excluded_devices: got %v", cfg.Audio.ExcludedDevices)
	}
	if cfg.Screen.CaptureRateSeconds != 1.0 || cfg.Screen.StableCountThreshold != 2 ||
		cfg.Screen.MinTextLength != 50 || cfg.Screen.PhashGrid != 32 {
		t.Errorf("screen defaults: %+v", cfg.Screen)
	}
	if cfg.Memory.PoolSize != 3 || cfg.Memory.PruneThreshold != 10000 || cfg.Memory.PruneKeep != 5000 {
		t.Errorf("memory defaults: %+v", cfg.Memory)
	}
	if cfg.Memory.RecencyWeight != 0.25 || cfg.Memory.AccessWeight != 0.50 || cfg.Memory.UniquenessWeight != 0.25 {
		t.Errorf("importance weights: %+v", cfg.Memory)
	}
	if cfg.AutoAnswer.CooldownSeconds != 10 || cfg.AutoAnswer.MinQuestionLength != 10 ||
		cfg.AutoAnswer.ContextWindowSeconds != 120 || cfg.AutoAnswer.ScreenTruncate != 2000 {
		t.Errorf("auto_answer defaults: %+v", cfg.AutoAnswer)
	}
	if cfg.LLM.ContextMaxLength != 5000 || cfg.LLM.MemoryTopK != 5 {
		t.Errorf("llm defaults: %+v", cfg.LLM)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	off := false
	cfg := &config.Config{}
	cfg.Audio.SampleRate = 48000
	cfg.AutoAnswer.Enabled = &off
	cfg.Memory.PruneThreshold = 200
	cfg.Memory.PruneKeep = 100
	config.ApplyDefaults(cfg)

	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample_rate overwritten: %d", cfg.Audio.SampleRate)
	}
	if *cfg.AutoAnswer.Enabled {
		t.Error("auto_answer.enabled=false overwritten")
	}
	if cfg.Memory.PruneThreshold != 200 || cfg.Memory.PruneKeep != 100 {
		t.Errorf("prune bounds overwritten: %+v", cfg.Memory)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad log level", func(c *config.Config) { c.Server.LogLevel = "verbose" }},
		{"negative sample rate", func(c *config.Config) { c.Audio.SampleRate = -1 }},
		{"vad threshold above 1", func(c *config.Config) { c.Audio.VADThreshold = 1.5 }},
		{"negative silence chunks", func(c *config.Config) { c.Audio.MaxSilenceChunks = -3 }},
		{"keep above threshold", func(c *config.Config) { c.Memory.PruneKeep = 20000 }},
		{"weights not summing to 1", func(c *config.Config) { c.Memory.AccessWeight = 0.9 }},
		{"dup below cluster threshold", func(c *config.Config) { c.Memory.DupThreshold = 0.5 }},
		{"negative cooldown", func(c *config.Config) { c.AutoAnswer.CooldownSeconds = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := config.Validate(cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	if err := config.Validate(defaultConfig()); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
