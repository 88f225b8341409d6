// Command zhiyu is the main entry point for the ZhiYuAI interaction server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/wanwindy/ZhiYuAI/internal/config"
	"github.com/wanwindy/ZhiYuAI/internal/history"
	historypg "github.com/wanwindy/ZhiYuAI/internal/history/postgres"
	"github.com/wanwindy/ZhiYuAI/internal/observe"
	"github.com/wanwindy/ZhiYuAI/internal/resilience"
	"github.com/wanwindy/ZhiYuAI/internal/server"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr/gummy"
	asrmock "github.com/wanwindy/ZhiYuAI/pkg/provider/asr/mock"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm/anyllm"
	llmmock "github.com/wanwindy/ZhiYuAI/pkg/provider/llm/mock"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm/qwen"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts/dashscope"
	ttsmock "github.com/wanwindy/ZhiYuAI/pkg/provider/tts/mock"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision"
	visionmock "github.com/wanwindy/ZhiYuAI/pkg/provider/vision/mock"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision/qwenvl"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	configExplicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configExplicit = true
		}
	})

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	configFromFile := err == nil
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "zhiyu: %v\n", err)
			return 1
		}
		if configExplicit {
			fmt.Fprintf(os.Stderr, "zhiyu: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
			return 1
		}
		// No config file at the default location: run with defaults, which
		// carries no API keys and therefore selects mock mode.
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can change it at
	// runtime without rebuilding the handler.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if !configFromFile {
		slog.Warn("no config file found — running with built-in defaults in mock mode", "path", *configPath)
	}
	slog.Info("zhiyu starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"mock", cfg.MockMode(),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: server.Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── History store ─────────────────────────────────────────────────────────
	store, err := newHistoryStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open history store", "err", err)
		return 1
	}
	defer store.Close()

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(cfg, providers, store, metrics, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	if configFromFile {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if d.SpeechChanged || d.LimitsChanged {
				srv.SetConfig(new)
				slog.Info("speech/limit settings reloaded — new sessions pick them up")
			}
			if d.RestartRequired {
				slog.Warn("config change requires a restart to take effect")
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tlsCfg := cfg.Server.TLS; tlsCfg != nil {
			err = httpSrv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyLLMBackends are the reasoning backends served through any-llm-go. They
// share the APIKey + optional BaseURL pattern.
var anyLLMBackends = []string{
	"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Factories close over cfg for the synthesis defaults that live outside the
// provider entry.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── ASR ───────────────────────────────────────────────────────────────────
	reg.RegisterASR("gummy", func(entry config.ProviderEntry) (asr.Provider, error) {
		opts := []gummy.Option{gummy.WithSampleRate(cfg.Speech.SampleRate)}
		if entry.Model != "" {
			opts = append(opts, gummy.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, gummy.WithEndpoint(entry.BaseURL))
		}
		return gummy.New(entry.APIKey, opts...)
	})
	reg.RegisterASR("mock", func(config.ProviderEntry) (asr.Provider, error) {
		return &asrmock.Provider{Translate: llmmock.Translate}, nil
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("qwen", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []qwen.Option
		if entry.BaseURL != "" {
			opts = append(opts, qwen.WithBaseURL(entry.BaseURL))
		}
		return qwen.New(entry.APIKey, entry.Model, opts...)
	})

	for _, backend := range anyLLMBackends {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	// ── Vision ────────────────────────────────────────────────────────────────
	reg.RegisterVision("qwen-vl", func(entry config.ProviderEntry) (vision.Provider, error) {
		var opts []qwenvl.Option
		if entry.Model != "" {
			opts = append(opts, qwenvl.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, qwenvl.WithBaseURL(entry.BaseURL))
		}
		return qwenvl.New(entry.APIKey, opts...)
	})
	reg.RegisterVision("mock", func(config.ProviderEntry) (vision.Provider, error) {
		return &visionmock.Provider{}, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("dashscope", func(entry config.ProviderEntry) (tts.Provider, error) {
		opts := []dashscope.Option{
			dashscope.WithVoice(cfg.Speech.TTSVoice),
			dashscope.WithLanguage(cfg.Speech.TTSLanguage),
			dashscope.WithAudioFormat(cfg.Speech.TTSFormat),
		}
		if entry.Model != "" {
			opts = append(opts, dashscope.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, dashscope.WithEndpoint(entry.BaseURL))
		}
		return dashscope.New(entry.APIKey, opts...)
	})
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})
}

// buildProviders instantiates the four pipeline backends named in cfg. In
// mock mode every stage runs its deterministic offline implementation. Live
// LLM, vision, and TTS providers are wrapped in circuit breakers so a failing
// upstream is cut off instead of slowing every request; the streaming ASR
// provider manages its own connection lifecycle and is left unwrapped.
func buildProviders(cfg *config.Config, reg *config.Registry) (server.Providers, error) {
	if cfg.MockMode() {
		slog.Info("mock mode active — all providers run offline")
		return server.Providers{
			// The pseudo-translator keeps demo transcripts readable: en→zh
			// goes through the word dictionary instead of a placeholder tag.
			ASR:    &asrmock.Provider{Translate: llmmock.Translate},
			LLM:    &llmmock.Provider{},
			Vision: &visionmock.Provider{},
			TTS:    &ttsmock.Provider{},
		}, nil
	}

	ps := server.Providers{}

	asrEntry := orMock(cfg.Providers.ASR, "asr")
	asrProv, err := reg.CreateASR(asrEntry)
	if err != nil {
		return ps, fmt.Errorf("create asr provider %q: %w", asrEntry.Name, err)
	}
	ps.ASR = asrProv
	slog.Info("provider created", "kind", "asr", "name", asrEntry.Name)

	llmEntry := orMock(cfg.Providers.LLM, "llm")
	llmProv, err := reg.CreateLLM(llmEntry)
	if err != nil {
		return ps, fmt.Errorf("create llm provider %q: %w", llmEntry.Name, err)
	}
	ps.LLM = resilience.NewLLMGuard(llmEntry.Name, llmProv, resilience.BreakerConfig{})
	slog.Info("provider created", "kind", "llm", "name", llmEntry.Name)

	visionEntry := orMock(cfg.Providers.Vision, "vision")
	visionProv, err := reg.CreateVision(visionEntry)
	if err != nil {
		return ps, fmt.Errorf("create vision provider %q: %w", visionEntry.Name, err)
	}
	ps.Vision = resilience.NewVisionGuard(visionEntry.Name, visionProv, resilience.BreakerConfig{})
	slog.Info("provider created", "kind", "vision", "name", visionEntry.Name)

	ttsEntry := orMock(cfg.Providers.TTS, "tts")
	ttsProv, err := reg.CreateTTS(ttsEntry)
	if err != nil {
		return ps, fmt.Errorf("create tts provider %q: %w", ttsEntry.Name, err)
	}
	ps.TTS = resilience.NewTTSGuard(ttsEntry.Name, ttsProv, resilience.BreakerConfig{})
	slog.Info("provider created", "kind", "tts", "name", ttsEntry.Name)

	return ps, nil
}

// orMock substitutes the mock provider for a pipeline stage left unnamed in
// the config, so a partially configured deployment still serves every
// endpoint.
func orMock(entry config.ProviderEntry, kind string) config.ProviderEntry {
	if entry.Name != "" {
		return entry
	}
	slog.Warn("no provider configured — falling back to mock", "kind", kind)
	entry.Name = "mock"
	return entry
}

// newHistoryStore opens the configured interaction-history backend. The
// PostgreSQL store is wrapped in a guard so a database outage degrades
// history instead of failing live sessions.
func newHistoryStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Driver {
	case config.HistoryPostgres:
		pg, err := historypg.NewStore(ctx, cfg.History.DSN)
		if err != nil {
			return nil, err
		}
		slog.Info("history store opened", "driver", "postgres")
		return history.NewGuard(pg), nil
	default:
		slog.Info("history store opened", "driver", "memory")
		return history.NewMemoryStore(), nil
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          ZhiYuAI — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Vision", cfg.Providers.Vision.Name, cfg.Providers.Vision.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  History      : %-22s ║\n", string(cfg.History.Driver))
	if cfg.MockMode() {
		fmt.Printf("║  Mode         : %-22s ║\n", "mock (offline)")
	} else {
		fmt.Printf("║  Mode         : %-22s ║\n", "live")
	}
	fmt.Printf("║  Listen addr  : %-22s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(mock)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 22 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-10s   : %-22s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
