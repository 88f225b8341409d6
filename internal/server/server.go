// Package server exposes the ZhiYuAI HTTP surface: REST endpoints for
// whole-clip recognition, translation, scene analysis, and speech synthesis,
// plus the two live WebSocket endpoints backed by internal/session.
//
// Every REST response uses the {"success": bool, "data"/"error"} envelope.
// The live endpoints speak the session wire protocol instead.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wanwindy/ZhiYuAI/internal/config"
	"github.com/wanwindy/ZhiYuAI/internal/health"
	"github.com/wanwindy/ZhiYuAI/internal/history"
	"github.com/wanwindy/ZhiYuAI/internal/observe"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision"
)

// Version is reported by the /health endpoint. Overridable at link time.
var Version = "dev"

// Providers bundles the four pipeline backends the server serves from.
type Providers struct {
	ASR    asr.Provider
	LLM    llm.Provider
	Vision vision.Provider
	TTS    tts.Provider
}

// Server holds the shared state behind all HTTP handlers. Construct with
// [New]; the zero value is not usable.
//
// The configuration is read through an atomic pointer so the hot-reloadable
// subset (speech defaults, audio limits) can be swapped at runtime via
// [Server.SetConfig] without racing in-flight requests.
type Server struct {
	cfg       atomic.Pointer[config.Config]
	providers Providers
	store     history.Store
	metrics   *observe.Metrics
	log       *slog.Logger
}

// New assembles a Server. store and metrics may be nil; logger defaults to
// slog.Default.
func New(cfg *config.Config, providers Providers, store history.Store, metrics *observe.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		providers: providers,
		store:     store,
		metrics:   metrics,
		log:       logger,
	}
	s.cfg.Store(cfg)
	return s
}

// config returns the current configuration snapshot. Handlers read it once
// per request so a concurrent swap cannot mix two versions.
func (s *Server) config() *config.Config {
	return s.cfg.Load()
}

// SetConfig swaps in a new configuration. Only fields the config watcher
// marks hot-reloadable take effect; network-level settings still need a
// restart.
func (s *Server) SetConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
}

// readinessChecks builds the dependency probes behind /ready. The history
// check reports failure while the store is degraded; the providers check
// guards against a partially wired server.
func (s *Server) readinessChecks() []health.Check {
	checks := []health.Check{{
		Name: "providers",
		Probe: func(context.Context) error {
			if s.providers.ASR == nil || s.providers.LLM == nil ||
				s.providers.Vision == nil || s.providers.TTS == nil {
				return errors.New("provider missing")
			}
			return nil
		},
	}}

	if d, ok := s.store.(interface{ IsDegraded() bool }); ok {
		checks = append(checks, health.Check{
			Name: "history",
			Probe: func(context.Context) error {
				if d.IsDegraded() {
					return errors.New("store degraded")
				}
				return nil
			},
		})
	}
	return checks
}

// Handler builds the full route table wrapped in the CORS and observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /ready", health.NewProbe(s.readinessChecks()...))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /tts", s.handleTTS)
	mux.HandleFunc("POST /translate", s.handleTranslate)
	mux.HandleFunc("POST /voice/recognize", s.handleVoiceRecognize)
	mux.HandleFunc("POST /voice/translate", s.handleVoiceTranslate)
	mux.HandleFunc("POST /voice/translate/stream", s.handleVoiceTranslateStream)
	mux.HandleFunc("POST /scene/recognize", s.handleSceneRecognize)
	mux.HandleFunc("POST /scene/analyze", s.handleSceneAnalyze)
	mux.HandleFunc("GET /scene/scenarios", s.handleSceneScenarios)
	mux.HandleFunc("POST /dialogue", s.handleDialogue)

	mux.HandleFunc("GET /voice/translate/live", s.handleTranslateLive)
	mux.HandleFunc("GET /dialogue/live", s.handleDialogueLive)

	var h http.Handler = mux
	if s.metrics != nil {
		h = observe.Middleware(s.metrics)(h)
	}
	return corsMiddleware(s.config().Server.AllowedOrigins)(h)
}
