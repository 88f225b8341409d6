// Package dashscope provides a TTS provider backed by the DashScope
// qwen-tts family of models. Synthesis is a two-step exchange: a generation
// request returns a short-lived URL, and the encoded audio is downloaded from
// it. It implements the tts.Provider interface.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
)

const (
	defaultEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"
	defaultModel    = "qwen3-tts-flash"
	defaultVoice    = "Cherry"
	defaultLanguage = "Chinese"
	defaultFormat   = "wav"
	defaultTimeout  = 30 * time.Second
)

// Option is a functional option for configuring the DashScope Provider.
type Option func(*Provider)

// WithModel sets the synthesis model (e.g., "qwen3-tts-flash").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithVoice sets the default voice profile (e.g., "Cherry").
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithLanguage sets the default language type (e.g., "Chinese").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithAudioFormat sets the requested audio container (e.g., "wav", "mp3").
func WithAudioFormat(format string) Option {
	return func(p *Provider) {
		p.format = format
	}
}

// WithEndpoint overrides the generation endpoint. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithTimeout bounds both the generation call and the audio download.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by DashScope.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	voice      string
	language   string
	format     string
	httpClient *http.Client
}

// New creates a new DashScope TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("dashscope tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		voice:      defaultVoice,
		language:   defaultLanguage,
		format:     defaultFormat,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- wire messages ----

// generationRequest is the JSON body of the synthesis call.
type generationRequest struct {
	Model string `json:"model"`
	Input struct {
		Text         string `json:"text"`
		Voice        string `json:"voice"`
		LanguageType string `json:"language_type"`
	} `json:"input"`
	Parameters struct {
		AudioFormat string `json:"audio_format"`
	} `json:"parameters"`
}

// generationResponse is the JSON reply; Output.Audio.URL points at the clip.
type generationResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		Audio struct {
			URL string `json:"url"`
		} `json:"audio"`
	} `json:"output"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return tts.Audio{}, errors.New("dashscope tts: text must not be empty")
	}

	audioURL, err := p.generate(ctx, req)
	if err != nil {
		return tts.Audio{}, err
	}

	data, err := p.download(ctx, audioURL)
	if err != nil {
		return tts.Audio{}, err
	}
	return tts.Audio{Data: data, Format: p.format}, nil
}

// generate submits the synthesis request and returns the audio URL.
func (p *Provider) generate(ctx context.Context, req tts.SynthesizeRequest) (string, error) {
	var body generationRequest
	body.Model = p.model
	body.Input.Text = req.Text
	body.Input.Voice = p.voice
	if req.Voice != "" {
		body.Input.Voice = req.Voice
	}
	body.Input.LanguageType = p.language
	if req.Language != "" {
		body.Input.LanguageType = req.Language
	}
	body.Parameters.AudioFormat = p.format

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("dashscope tts: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("dashscope tts: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("dashscope tts: generation call: %w", err)
	}
	defer resp.Body.Close()

	var decoded generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("dashscope tts: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := decoded.Message
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("dashscope tts: generation failed: %s", msg)
	}
	if decoded.Output.Audio.URL == "" {
		return "", errors.New("dashscope tts: response carries no audio URL")
	}
	return decoded.Output.Audio.URL, nil
}

// download fetches the synthesized clip from its short-lived URL.
func (p *Provider) download(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dashscope tts: build download request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dashscope tts: download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dashscope tts: download audio: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dashscope tts: read audio body: %w", err)
	}
	return data, nil
}
