package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/wanwindy/ZhiYuAI/internal/session"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

// audioFetchTimeout bounds the download of a clip referenced by audio_url.
const audioFetchTimeout = 30 * time.Second

type audioPayload struct {
	AudioBase64 string `json:"audio_base64"`
	AudioURL    string `json:"audio_url"`

	TargetLanguage string `json:"target_language"`
}

// loadAudio resolves the clip bytes from the payload, enforcing the audio
// byte budget on both the inline and the download path.
func (s *Server) loadAudio(ctx context.Context, p audioPayload) ([]byte, error) {
	maxBytes := s.config().Limits.MaxAudioBytes

	if p.AudioBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(p.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid audio_base64: %w", err)
		}
		if int64(len(raw)) > maxBytes {
			return nil, session.ErrAudioBudget
		}
		return raw, nil
	}

	if p.AudioURL != "" {
		ctx, cancel := context.WithTimeout(ctx, audioFetchTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.AudioURL, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid audio_url: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download audio: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download audio: unexpected status %d", resp.StatusCode)
		}

		// Read one byte past the budget so violations are detected without
		// buffering an unbounded body.
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("download audio: %w", err)
		}
		if int64(len(raw)) > maxBytes {
			return nil, session.ErrAudioBudget
		}
		return raw, nil
	}

	return nil, errors.New("Provide 'audio_base64' or 'audio_url'.")
}

// clipResult is the aggregated outcome of running one clip through the
// recognition engine.
type clipResult struct {
	Transcripts  []string
	Translations map[string]string
}

// runClip feeds a whole clip through the same bridge the live endpoints use:
// start, chunked ingest, stop, drain. A mid-stream engine error fails the
// whole clip.
func (s *Server) runClip(ctx context.Context, audio []byte, targetLanguages []string) (clipResult, error) {
	cfg := s.config()
	bridge := session.NewBridge()
	stream, err := s.providers.ASR.NewStream(asr.StreamConfig{
		Model:           cfg.Providers.ASR.Model,
		Format:          "wav",
		SampleRate:      cfg.Speech.SampleRate,
		TargetLanguages: targetLanguages,
	}, bridge)
	if err != nil {
		return clipResult{}, fmt.Errorf("create recognition stream: %w", err)
	}

	// Drain concurrently: engine callbacks block when the bridge buffer
	// fills, so collection must not wait for Stop to return.
	type outcome struct {
		result clipResult
		err    error
	}
	resCh := make(chan outcome, 1)
	go func() {
		var out outcome
		for ev := range bridge.Events() {
			switch ev := ev.(type) {
			case session.EngineError:
				out.err = errors.New(ev.Message)
			case session.EngineDone:
				out.result = clipResult{Transcripts: ev.Segments, Translations: ev.Translations}
			}
		}
		resCh <- out
	}()

	start := time.Now()
	err = func() error {
		if err := stream.Start(ctx); err != nil {
			return fmt.Errorf("start recognition stream: %w", err)
		}
		ingest := session.NewIngestor(stream, cfg.Limits.MaxAudioBytes, cfg.Limits.ChunkSize)
		return ingest.Ingest(ctx, audio)
	}()

	if stopErr := stream.Stop(ctx); stopErr != nil {
		s.log.Warn("recognition stream stop failed", "error", stopErr)
	}
	bridge.EnsureFinished()

	out := <-resCh
	if s.metrics != nil {
		s.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.AudioBytes.Add(ctx, int64(len(audio)))
	}
	if err != nil {
		return clipResult{}, err
	}
	if out.err != nil {
		return clipResult{}, out.err
	}
	return out.result, nil
}

// handleVoiceRecognize transcribes a whole clip without translation.
func (s *Server) handleVoiceRecognize(w http.ResponseWriter, r *http.Request) {
	var req audioPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	audio, err := s.loadAudio(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.runClip(r.Context(), audio, nil)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondData(w, map[string]any{
		"transcripts": result.Transcripts,
	})
}

// handleVoiceTranslate transcribes and translates a whole clip.
func (s *Server) handleVoiceTranslate(w http.ResponseWriter, r *http.Request) {
	var req audioPayload
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	audio, err := s.loadAudio(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.runClip(r.Context(), audio, s.targetLanguages(req.TargetLanguage))
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	translations := make([]map[string]string, 0, len(result.Translations))
	languages := make([]string, 0, len(result.Translations))
	for lang := range result.Translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	for _, lang := range languages {
		translations = append(translations, map[string]string{
			"language": lang,
			"text":     result.Translations[lang],
		})
	}

	respondData(w, map[string]any{
		"transcripts":  result.Transcripts,
		"translations": translations,
	})
}

// sseWriter emits session wire events as server-sent events, one
// "data: {json}" frame each, flushing after every frame so clients see
// results as the engine produces them.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher}
}

func (s *sseWriter) emit(ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// fail ends the stream with an error frame followed by the terminal done.
// Load and setup failures surface inside the stream, not as an HTTP error
// status: the event-stream content type is already committed.
func (s *sseWriter) fail(message string) {
	s.emit(session.ErrorEvent{Message: message})
	s.emit(session.DoneEvent{})
}

// handleVoiceTranslateStream answers a whole-clip upload with a live event
// stream: the same wire events the WebSocket endpoints emit, replayed over
// SSE as recognition progresses through the clip.
func (s *Server) handleVoiceTranslateStream(w http.ResponseWriter, r *http.Request) {
	out := newSSEWriter(w)

	var req audioPayload
	if err := decodeJSON(r, &req); err != nil {
		out.fail("invalid JSON payload")
		return
	}
	audio, err := s.loadAudio(r.Context(), req)
	if err != nil {
		out.fail(err.Error())
		return
	}

	cfg := s.config()
	bridge := session.NewBridge()
	stream, err := s.providers.ASR.NewStream(asr.StreamConfig{
		Model:           cfg.Providers.ASR.Model,
		Format:          "wav",
		SampleRate:      cfg.Speech.SampleRate,
		TargetLanguages: s.targetLanguages(req.TargetLanguage),
	}, bridge)
	if err != nil {
		out.fail("create recognition stream: " + err.Error())
		return
	}

	// The engine is driven on its own goroutine; this handler's goroutine
	// drains the bridge so events flush while ingestion is still running.
	ctx := r.Context()
	go func() {
		err := func() error {
			if err := stream.Start(ctx); err != nil {
				return fmt.Errorf("start recognition stream: %w", err)
			}
			ingest := session.NewIngestor(stream, cfg.Limits.MaxAudioBytes, cfg.Limits.ChunkSize)
			return ingest.Ingest(ctx, audio)
		}()
		if err != nil {
			bridge.FinishWithError(err.Error())
		}
		if stopErr := stream.Stop(ctx); stopErr != nil {
			s.log.Warn("recognition stream stop failed", "error", stopErr)
		}
		bridge.EnsureFinished()
	}()

	start := time.Now()
	sawDone := false
	for ev := range bridge.Events() {
		switch ev := ev.(type) {
		case session.EngineReady:
			out.emit(session.ReadyEvent{})
		case session.EngineTranscript:
			out.emit(session.TranscriptEvent{Text: ev.Text})
		case session.EngineTranslation:
			out.emit(session.TranslationEvent{Language: ev.Language, Text: ev.Text})
		case session.EngineError:
			out.emit(session.ErrorEvent{Message: ev.Message})
		case session.EngineDone:
			sawDone = true
			out.emit(session.DoneEvent{Data: session.UtteranceData(ev)})
		}
	}
	if !sawDone {
		out.emit(session.DoneEvent{})
	}

	if s.metrics != nil {
		s.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.AudioBytes.Add(ctx, int64(len(audio)))
	}
}

// targetLanguages resolves the translation targets: a comma-separated
// request value, falling back to the configured default.
func (s *Server) targetLanguages(raw string) []string {
	if raw == "" {
		raw = s.config().Speech.TargetLanguage
	}
	var langs []string
	for _, lang := range strings.Split(raw, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			langs = append(langs, lang)
		}
	}
	return langs
}
