package config_test

import (
	"testing"

	"github.com/bigear-ai/bigear/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	old, new := defaultConfig(), defaultConfig()
	if d := config.Diff(old, new); d.Any() {
		t.Errorf("identical configs should produce empty diff: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old, new := defaultConfig(), defaultConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff: %+v", d)
	}
}

func TestDiff_AutoAnswer(t *testing.T) {
	old, new := defaultConfig(), defaultConfig()
	new.AutoAnswer.CooldownSeconds = 30

	d := config.Diff(old, new)
	if !d.AutoAnswerChanged {
		t.Error("cooldown change not detected")
	}
	if d.ScreenChanged || d.LogLevelChanged {
		t.Errorf("unrelated fields flagged: %+v", d)
	}
}

func TestDiff_ScreenToggle(t *testing.T) {
	off := false
	old, new := defaultConfig(), defaultConfig()
	new.Screen.Enabled = &off

	if d := config.Diff(old, new); !d.ScreenChanged {
		t.Error("screen toggle not detected")
	}
}

func TestDiff_QuestionSources(t *testing.T) {
	old, new := defaultConfig(), defaultConfig()
	new.Audio.QuestionSources = []string{"system", "user"}

	if d := config.Diff(old, new); !d.QuestionSourcesChanged {
		t.Error("question sources change not detected")
	}
}
