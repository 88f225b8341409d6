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

// Defaults applied by [ApplyDefaults] when the corresponding field is unset.
const (
	DefaultListenAddr     = ":8000"
	DefaultMaxAudioBytes  = 5 * 1024 * 1024
	DefaultChunkSize      = 8192
	DefaultTargetLanguage = "en"
	DefaultSampleRate     = 16000
	DefaultTTSVoice       = "Cherry"
	DefaultTTSLanguage    = "Chinese"
	DefaultTTSFormat      = "wav"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":    {"gummy", "mock"},
	"llm":    {"qwen", "openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "mock"},
	"vision": {"qwen-vl", "mock"},
	"tts":    {"dashscope", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
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

// ApplyDefaults fills in zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Limits.MaxAudioBytes == 0 {
		cfg.Limits.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if cfg.Limits.ChunkSize == 0 {
		cfg.Limits.ChunkSize = DefaultChunkSize
	}
	if cfg.Speech.TargetLanguage == "" {
		cfg.Speech.TargetLanguage = DefaultTargetLanguage
	}
	if cfg.Speech.SampleRate == 0 {
		cfg.Speech.SampleRate = DefaultSampleRate
	}
	if cfg.Speech.TTSVoice == "" {
		cfg.Speech.TTSVoice = DefaultTTSVoice
	}
	if cfg.Speech.TTSLanguage == "" {
		cfg.Speech.TTSLanguage = DefaultTTSLanguage
	}
	if cfg.Speech.TTSFormat == "" {
		cfg.Speech.TTSFormat = DefaultTTSFormat
	}
	if cfg.History.Driver == "" {
		cfg.History.Driver = HistoryMemory
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("vision", cfg.Providers.Vision.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Limits
	if cfg.Limits.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("limits.max_audio_bytes %d must not be negative", cfg.Limits.MaxAudioBytes))
	}
	if cfg.Limits.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("limits.chunk_size %d must not be negative", cfg.Limits.ChunkSize))
	}
	if cfg.Limits.ChunkSize > 0 && int64(cfg.Limits.ChunkSize) > cfg.Limits.MaxAudioBytes && cfg.Limits.MaxAudioBytes > 0 {
		errs = append(errs, fmt.Errorf("limits.chunk_size %d exceeds limits.max_audio_bytes %d", cfg.Limits.ChunkSize, cfg.Limits.MaxAudioBytes))
	}

	// Speech
	if cfg.Speech.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("speech.sample_rate %d must not be negative", cfg.Speech.SampleRate))
	}

	// History
	if cfg.History.Driver != "" && !cfg.History.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("history.driver %q is invalid; valid values: memory, postgres", cfg.History.Driver))
	}
	if cfg.History.Driver == HistoryPostgres && cfg.History.DSN == "" {
		errs = append(errs, errors.New("history.dsn is required when history.driver is postgres"))
	}

	// Offline providers are a supported mode, but an explicit heads-up keeps
	// a missing key from masquerading as a live deployment.
	if !cfg.Mock && cfg.MockMode() {
		slog.Warn("no provider API keys configured; all providers will run in mock mode")
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
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
