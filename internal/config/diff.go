package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// (listen address, providers, history driver) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SpeechChanged is true if any recognition or synthesis parameter
	// changed. New sessions pick up the new values; running sessions keep
	// the settings they started with.
	SpeechChanged bool
	NewSpeech     SpeechConfig

	// LimitsChanged is true if the audio budget or chunk size changed.
	LimitsChanged bool
	NewLimits     LimitsConfig

	// RestartRequired is true if a field outside the hot-reloadable set
	// differs between the configs.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Speech != new.Speech {
		d.SpeechChanged = true
		d.NewSpeech = new.Speech
	}

	if old.Limits != new.Limits {
		d.LimitsChanged = true
		d.NewLimits = new.Limits
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		!slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) ||
		!tlsEqual(old.Server.TLS, new.Server.TLS) ||
		old.Providers != new.Providers ||
		old.History != new.History ||
		old.Mock != new.Mock {
		d.RestartRequired = true
	}

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
