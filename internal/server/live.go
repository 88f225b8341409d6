package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/coder/websocket"

	"github.com/wanwindy/ZhiYuAI/internal/session"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

// handleTranslateLive upgrades to a WebSocket and runs a translate-only
// session: live transcripts and translations, utterance result in the done
// event, no assistant turn.
func (s *Server) handleTranslateLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.accept(w, r)
	if err != nil {
		return
	}

	cfg := s.config()
	target := r.URL.Query().Get("target_language")
	sess := session.New(newSessionID(), session.NewWSTransport(conn), session.Config{
		Mode: session.ModeTranslate,
		ASR:  s.providers.ASR,
		Stream: asr.StreamConfig{
			Model:           cfg.Providers.ASR.Model,
			SampleRate:      cfg.Speech.SampleRate,
			TargetLanguages: s.targetLanguages(target),
		},
		MaxAudioBytes: cfg.Limits.MaxAudioBytes,
		ChunkSize:     cfg.Limits.ChunkSize,
		History:       s.store,
		Metrics:       s.metrics,
		Logger:        s.log,
	})

	if err := sess.Run(r.Context()); err != nil {
		s.log.Warn("live translate session failed", "error", err)
	}
}

// handleDialogueLive upgrades to a WebSocket and runs a scene-dialogue
// session: the orchestrator replies to each completed utterance, camera
// frames feed the scene cache.
func (s *Server) handleDialogueLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.accept(w, r)
	if err != nil {
		return
	}

	cfg := s.config()
	replyLanguage := r.URL.Query().Get("reply_language")
	if replyLanguage == "" {
		replyLanguage = cfg.Speech.TTSLanguage
	}

	sess := session.New(newSessionID(), session.NewWSTransport(conn), session.Config{
		Mode: session.ModeDialogue,
		ASR:  s.providers.ASR,
		Stream: asr.StreamConfig{
			Model:      cfg.Providers.ASR.Model,
			SampleRate: cfg.Speech.SampleRate,
		},
		Orchestrator: session.NewOrchestrator(
			s.providers.LLM,
			s.providers.TTS,
			cfg.Speech.TTSVoice,
			replyLanguage,
			s.store,
			s.metrics,
		),
		Scene:         session.NewSceneCache(s.providers.Vision),
		MaxAudioBytes: cfg.Limits.MaxAudioBytes,
		ChunkSize:     cfg.Limits.ChunkSize,
		History:       s.store,
		Metrics:       s.metrics,
		Logger:        s.log,
	})

	if err := sess.Run(r.Context()); err != nil {
		s.log.Warn("live dialogue session failed", "error", err)
	}
}

// accept performs the WebSocket upgrade with the configured origin policy.
func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	allowed := s.config().Server.AllowedOrigins
	opts := &websocket.AcceptOptions{}
	if len(allowed) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = allowed
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return nil, err
	}
	return conn, nil
}

// newSessionID returns a short random identifier for log correlation.
func newSessionID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
