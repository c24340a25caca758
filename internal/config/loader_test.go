package config_test

import (
	"strings"
	"testing"

	"github.com/bigear-ai/bigear/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	const yml = `
server:
  listen_addr: ":9000"
  log_level: debug
providers:
  llm:
    name: gemini
    api_key: test-key
    model: gemini-2.0-flash
  stt:
    name: whisper
    model_path: /models/ggml-base.en.bin
audio:
  sample_rate: 16000
  vad_threshold: 0.6
  excluded_devices: [iphone]
screen:
  min_text_length: 80
memory:
  postgres_dsn: "postgres://localhost/bigear"
  pool_size: 2
auto_answer:
  cooldown_seconds: 5
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Name != "gemini" || cfg.Providers.LLM.APIKey != "test-key" {
		t.Errorf("llm provider: %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.STT.ModelPath != "/models/ggml-base.en.bin" {
		t.Errorf("stt model_path: %q", cfg.Providers.STT.ModelPath)
	}
	if cfg.Audio.VADThreshold != 0.6 {
		t.Errorf("vad_threshold: got %v", cfg.Audio.VADThreshold)
	}
	if len(cfg.Audio.ExcludedDevices) != 1 || cfg.Audio.ExcludedDevices[0] != "iphone" {
		t.Errorf("excluded_devices: %v", cfg.Audio.ExcludedDevices)
	}
	if cfg.Screen.MinTextLength != 80 {
		t.Errorf("min_text_length: got %d", cfg.Screen.MinTextLength)
	}
	if cfg.Memory.PoolSize != 2 {
		t.Errorf("pool_size: got %d", cfg.Memory.PoolSize)
	}
	if cfg.AutoAnswer.CooldownSeconds != 5 {
		t.Errorf("cooldown: got %v", cfg.AutoAnswer.CooldownSeconds)
	}

	// Unset knobs still receive defaults.
	if cfg.Audio.MaxSilenceChunks != 15 {
		t.Errorf("max_silence_chunks default: got %d", cfg.Audio.MaxSilenceChunks)
	}
	if cfg.Screen.PhashGrid != 32 {
		t.Errorf("phash_grid default: got %d", cfg.Screen.PhashGrid)
	}
}

func TestLoadFromReader_RejectsUnknownKeys(t *testing.T) {
	const yml = `
server:
  listen_addr: ":9000"
  max_connections: 10
`
	if _, err := config.LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
}

func TestLoadFromReader_EmptyInputYieldsDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("empty config did not get defaults: %+v", cfg.Audio)
	}
}

func TestLoadFromReader_InvalidValuesRejected(t *testing.T) {
	const yml = `
audio:
  vad_threshold: 3.0
`
	if _, err := config.LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/bigear.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
