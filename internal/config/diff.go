package config

import "slices"

// ConfigDiff describes what changed between two configs. Only fields that can
// be safely hot-reloaded without restarting capture pipelines are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AutoAnswerChanged covers enabled, cooldown, min question length and
	// context window.
	AutoAnswerChanged bool

	// ScreenChanged covers enabled, capture rate, stability threshold and
	// min text length.
	ScreenChanged bool

	// QuestionSourcesChanged covers the audio.question_sources list.
	QuestionSourcesChanged bool
}

// Any reports whether anything hot-reloadable changed.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.AutoAnswerChanged || d.ScreenChanged || d.QuestionSourcesChanged
}

// Diff compares old and new configs and returns what changed. Only tracks
// changes that are safe to apply without restart; provider, memory and device
// changes require a process restart and are ignored here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if boolValue(old.AutoAnswer.Enabled) != boolValue(new.AutoAnswer.Enabled) ||
		old.AutoAnswer.CooldownSeconds != new.AutoAnswer.CooldownSeconds ||
		old.AutoAnswer.MinQuestionLength != new.AutoAnswer.MinQuestionLength ||
		old.AutoAnswer.ContextWindowSeconds != new.AutoAnswer.ContextWindowSeconds ||
		old.AutoAnswer.ScreenTruncate != new.AutoAnswer.ScreenTruncate {
		d.AutoAnswerChanged = true
	}

	if boolValue(old.Screen.Enabled) != boolValue(new.Screen.Enabled) ||
		old.Screen.CaptureRateSeconds != new.Screen.CaptureRateSeconds ||
		old.Screen.StableCountThreshold != new.Screen.StableCountThreshold ||
		old.Screen.MinTextLength != new.Screen.MinTextLength {
		d.ScreenChanged = true
	}

	if !slices.Equal(old.Audio.QuestionSources, new.Audio.QuestionSources) {
		d.QuestionSourcesChanged = true
	}

	return d
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
