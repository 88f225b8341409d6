package config_test

import (
	"strings"
	"testing"

	"github.com/wanwindy/ZhiYuAI/internal/config"
)

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Limits.MaxAudioBytes != config.DefaultMaxAudioBytes {
		t.Errorf("MaxAudioBytes = %d, want %d", cfg.Limits.MaxAudioBytes, config.DefaultMaxAudioBytes)
	}
	if cfg.Limits.ChunkSize != config.DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.Limits.ChunkSize, config.DefaultChunkSize)
	}
	if cfg.Speech.TargetLanguage != "en" {
		t.Errorf("TargetLanguage = %q, want en", cfg.Speech.TargetLanguage)
	}
	if cfg.History.Driver != config.HistoryMemory {
		t.Errorf("History.Driver = %q, want memory", cfg.History.Driver)
	}
}

func TestLoadFromReader_ExplicitValuesSurviveDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
limits:
  max_audio_bytes: 1048576
  chunk_size: 4096
speech:
  target_language: ja
  tts_voice: Serena
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Limits.MaxAudioBytes != 1048576 {
		t.Errorf("MaxAudioBytes = %d, want 1048576", cfg.Limits.MaxAudioBytes)
	}
	if cfg.Speech.TargetLanguage != "ja" {
		t.Errorf("TargetLanguage = %q, want ja", cfg.Speech.TargetLanguage)
	}
	if cfg.Speech.TTSVoice != "Serena" {
		t.Errorf("TTSVoice = %q, want Serena", cfg.Speech.TTSVoice)
	}
	// Unset fields still default.
	if cfg.Speech.TTSLanguage != config.DefaultTTSLanguage {
		t.Errorf("TTSLanguage = %q, want %q", cfg.Speech.TTSLanguage, config.DefaultTTSLanguage)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()
	yaml := `
history:
  driver: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres driver without dsn, got nil")
	}
	if !strings.Contains(err.Error(), "history.dsn") {
		t.Errorf("error should mention history.dsn, got: %v", err)
	}
}

func TestValidate_TLSRequiresCertAndKey(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for TLS without cert/key, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "cert_file") {
		t.Errorf("error should mention cert_file, got: %v", err)
	}
	if !strings.Contains(errStr, "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_NegativeLimits(t *testing.T) {
	t.Parallel()
	yaml := `
limits:
  max_audio_bytes: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative max_audio_bytes, got nil")
	}
	if !strings.Contains(err.Error(), "max_audio_bytes") {
		t.Errorf("error should mention max_audio_bytes, got: %v", err)
	}
}

func TestValidate_ChunkLargerThanBudget(t *testing.T) {
	t.Parallel()
	yaml := `
limits:
  max_audio_bytes: 1024
  chunk_size: 8192
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for chunk_size exceeding max_audio_bytes, got nil")
	}
	if !strings.Contains(err.Error(), "chunk_size") {
		t.Errorf("error should mention chunk_size, got: %v", err)
	}
}

func TestMockMode(t *testing.T) {
	t.Parallel()

	t.Run("explicit flag", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Mock: true}
		cfg.Providers.LLM.APIKey = "sk-real"
		if !cfg.MockMode() {
			t.Error("MockMode should be true when Mock flag is set")
		}
	})

	t.Run("no keys", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{}
		if !cfg.MockMode() {
			t.Error("MockMode should be true when no provider has an API key")
		}
	})

	t.Run("any key disables", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{}
		cfg.Providers.ASR.APIKey = "sk-real"
		if cfg.MockMode() {
			t.Error("MockMode should be false when a provider key is set")
		}
	})
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	asrNames := config.ValidProviderNames["asr"]
	if len(asrNames) == 0 {
		t.Fatal("ValidProviderNames[\"asr\"] should not be empty")
	}
	found := false
	for _, n := range asrNames {
		if n == "gummy" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"asr\"] should contain \"gummy\"")
	}
}
