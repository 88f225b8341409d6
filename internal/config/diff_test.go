package config_test

import (
	"testing"

	"github.com/wanwindy/ZhiYuAI/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.SpeechChanged || d.LimitsChanged || d.RestartRequired {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged should be true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
	if d.RestartRequired {
		t.Error("log level change should not require restart")
	}
}

func TestDiff_Speech(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Speech.TargetLanguage = "ja"

	d := config.Diff(old, new)
	if !d.SpeechChanged {
		t.Error("SpeechChanged should be true")
	}
	if d.NewSpeech.TargetLanguage != "ja" {
		t.Errorf("NewSpeech.TargetLanguage = %q, want ja", d.NewSpeech.TargetLanguage)
	}
	if d.RestartRequired {
		t.Error("speech change should not require restart")
	}
}

func TestDiff_Limits(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Limits.MaxAudioBytes = 1024 * 1024

	d := config.Diff(old, new)
	if !d.LimitsChanged {
		t.Error("LimitsChanged should be true")
	}
	if d.NewLimits.MaxAudioBytes != 1024*1024 {
		t.Errorf("NewLimits.MaxAudioBytes = %d, want %d", d.NewLimits.MaxAudioBytes, 1024*1024)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	t.Run("listen addr", func(t *testing.T) {
		t.Parallel()
		old := baseConfig()
		new := baseConfig()
		new.Server.ListenAddr = ":9999"
		if d := config.Diff(old, new); !d.RestartRequired {
			t.Error("listen addr change should require restart")
		}
	})

	t.Run("provider", func(t *testing.T) {
		t.Parallel()
		old := baseConfig()
		new := baseConfig()
		new.Providers.LLM.Model = "qwen3-max"
		if d := config.Diff(old, new); !d.RestartRequired {
			t.Error("provider change should require restart")
		}
	})

	t.Run("tls added", func(t *testing.T) {
		t.Parallel()
		old := baseConfig()
		new := baseConfig()
		new.Server.TLS = &config.TLSConfig{CertFile: "cert.pem", KeyFile: "key.pem"}
		if d := config.Diff(old, new); !d.RestartRequired {
			t.Error("TLS change should require restart")
		}
	})

	t.Run("mock flag", func(t *testing.T) {
		t.Parallel()
		old := baseConfig()
		new := baseConfig()
		new.Mock = true
		if d := config.Diff(old, new); !d.RestartRequired {
			t.Error("mock flag change should require restart")
		}
	})
}
