package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/wanwindy/ZhiYuAI/internal/history"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision"
	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// translateSystemPrompt steers the text-translation model. Replies must be
// the bare translation so they can be returned verbatim.
const translateSystemPrompt = "You are a professional translation engine. " +
	"Preserve meaning, tone, and formatting. Return only the translated text."

// handleHealth reports service metadata. No envelope, matching the probe
// conventions of load balancers.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	cfg := s.config()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "zhiyu",
		"version": Version,
		"mock":    cfg.MockMode(),
		"models": map[string]string{
			"asr":    cfg.Providers.ASR.Model,
			"llm":    cfg.Providers.LLM.Model,
			"vision": cfg.Providers.Vision.Model,
			"tts":    cfg.Providers.TTS.Model,
		},
	})
}

// handleTTS synthesizes one clip and returns it base64-encoded.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		Voice    string `json:"voice"`
		Language string `json:"language_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required for TTS.")
		return
	}

	start := time.Now()
	audio, err := s.providers.TTS.Synthesize(r.Context(), tts.SynthesizeRequest{
		Text:     req.Text,
		Voice:    req.Voice,
		Language: req.Language,
	})
	if s.metrics != nil {
		s.metrics.TTSDuration.Record(r.Context(), time.Since(start).Seconds())
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = s.config().Speech.TTSVoice
	}
	respondData(w, map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString(audio.Data),
		"audio_format": audio.Format,
		"voice":        voice,
	})
}

// handleTranslate translates text through the reasoning model, with an
// exact-match cache in front when a history store is configured.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text           string `json:"text"`
		SourceLanguage string `json:"source_language"`
		TargetLanguage string `json:"target_language"`
		Context        string `json:"context"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required for translation.")
		return
	}

	cfg := s.config()
	target := req.TargetLanguage
	if target == "" {
		target = cfg.Speech.TargetLanguage
	}
	source := req.SourceLanguage
	if source == "" {
		source = "auto"
	}
	contextHint := req.Context
	if contextHint == "" {
		contextHint = "General conversation."
	}

	result := func(text, engine string) map[string]any {
		return map[string]any{
			"original_text":   req.Text,
			"translated_text": text,
			"source_language": source,
			"target_language": target,
			"engine":          engine,
			"confidence":      0.92,
		}
	}

	if s.store != nil {
		if cached, ok, err := s.store.CachedTranslation(r.Context(), req.Text, target); err == nil && ok {
			respondData(w, result(cached, "cache"))
			return
		}
	}

	translated, err := s.providers.LLM.Complete(r.Context(), llm.CompletionRequest{
		Messages: []types.Message{
			{Role: "system", Content: translateSystemPrompt},
			{Role: "user", Content: "Source language: " + source + "\n" +
				"Target language: " + target + "\n" +
				"Context: " + contextHint + "\n" +
				"Text: " + req.Text},
		},
		Temperature: 0.1,
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	translated = strings.TrimSpace(translated)

	if s.store != nil {
		_ = s.store.LogTranslation(r.Context(), history.Translation{
			SourceText:     req.Text,
			TargetLanguage: target,
			TranslatedText: translated,
		})
	}
	respondData(w, result(translated, cfg.Providers.LLM.Model))
}

// handleSceneRecognize runs one-shot scene analysis over the supplied frames.
func (s *Server) handleSceneRecognize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURLs []string `json:"image_urls"`
		Prompt    string   `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if len(req.ImageURLs) == 0 {
		respondError(w, http.StatusBadRequest, "image_urls must be a non-empty list of URLs.")
		return
	}

	start := time.Now()
	snap, err := s.providers.Vision.Analyze(r.Context(), vision.AnalyzeRequest{
		ImageURLs: req.ImageURLs,
		Prompt:    req.Prompt,
	})
	if s.metrics != nil {
		s.metrics.VisionDuration.Record(r.Context(), time.Since(start).Seconds())
		s.metrics.RecordSceneAnalysis(r.Context(), false)
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondData(w, snap)
}

// analyzeSystemPrompt steers the context-analysis model toward a machine
// readable reply.
const analyzeSystemPrompt = "Extract sentiment (positive/neutral/negative) and key topics as a JSON object."

// coachSystemPrompt steers the scenario coach behind POST /dialogue.
const coachSystemPrompt = "You are a multilingual scenario coach. Provide concise, context-aware replies " +
	"that help refine translation tone and strategy."

// handleSceneAnalyze extracts sentiment and key topics from a piece of
// conversation context.
func (s *Server) handleSceneAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContextText string `json:"context_text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.ContextText) == "" {
		respondError(w, http.StatusBadRequest, "context_text is required.")
		return
	}

	start := time.Now()
	reply, err := s.providers.LLM.Complete(r.Context(), llm.CompletionRequest{
		Messages: []types.Message{
			{Role: "system", Content: analyzeSystemPrompt},
			{Role: "user", Content: req.ContextText},
		},
	})
	if s.metrics != nil {
		s.metrics.LLMDuration.Record(r.Context(), time.Since(start).Seconds())
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Models occasionally answer in prose despite the instruction; keep the
	// raw reply as notes instead of failing the request.
	var analysis map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &analysis); err != nil {
		analysis = map[string]any{"sentiment": "neutral", "notes": reply}
	}
	respondData(w, analysis)
}

// handleDialogue runs the scenario coach over a short conversation history
// and returns one actionable suggestion.
func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		History []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history"`
		Scenario string `json:"scenario"`
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if len(req.History) == 0 {
		respondError(w, http.StatusBadRequest, "history must be a non-empty list of messages.")
		return
	}

	messages := make([]types.Message, 0, len(req.History)+2)
	messages = append(messages, types.Message{Role: "system", Content: coachSystemPrompt})
	for _, entry := range req.History {
		if (entry.Role != "user" && entry.Role != "assistant") || entry.Content == "" {
			respondError(w, http.StatusBadRequest,
				"Each history entry must include role ('user'/'assistant') and text content.")
			return
		}
		messages = append(messages, types.Message{Role: entry.Role, Content: entry.Content})
	}

	scenario := req.Scenario
	if scenario == "" {
		scenario = "general"
	}
	language := req.Language
	if language == "" {
		language = "zh"
	}
	messages = append(messages, types.Message{
		Role: "user",
		Content: "场景类型: " + scenario + "\n" +
			"目标语言: " + language + "\n" +
			"请围绕用户需求给出可操作建议，控制在 80 字以内。",
	})

	start := time.Now()
	reply, err := s.providers.LLM.Complete(r.Context(), llm.CompletionRequest{
		Messages:    messages,
		Temperature: 0.6,
	})
	if s.metrics != nil {
		s.metrics.LLMDuration.Record(r.Context(), time.Since(start).Seconds())
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondData(w, map[string]string{"reply": strings.TrimSpace(reply)})
}

// handleSceneScenarios serves the static scenario catalogue.
func (s *Server) handleSceneScenarios(w http.ResponseWriter, _ *http.Request) {
	respondData(w, []map[string]string{
		{"name": "business_meeting", "recommended_style": "formal"},
		{"name": "casual_conversation", "recommended_style": "friendly"},
		{"name": "technical_presentation", "recommended_style": "precise"},
	})
}
