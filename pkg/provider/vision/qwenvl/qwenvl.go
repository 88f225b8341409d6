// Package qwenvl provides a vision provider backed by DashScope's Qwen-VL
// models through the OpenAI-compatible chat endpoint.
package qwenvl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm/qwen"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision"
	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

const defaultModel = "qwen-vl-max-latest"

// systemPrompt instructs the model to answer with the snapshot JSON shape.
const systemPrompt = "You analyze visual scenes for a multilingual assistant. " +
	"Respond with JSON containing: scenario_name (string), confidence (0-1), " +
	"summary (string), recommended_settings (object with response_style, " +
	"formality_level, cultural_adaptation boolean)."

// defaultPrompt is the analysis instruction used when the caller supplies none.
const defaultPrompt = "分析画面，给出场景、摘要与沟通策略"

// Option is a functional option for configuring the Qwen-VL Provider.
type Option func(*config)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// WithBaseURL overrides the DashScope compatible-mode base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the vision model (e.g., "qwen-vl-max-latest").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements vision.Provider backed by Qwen-VL.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new Qwen-VL Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("qwenvl: apiKey must not be empty")
	}

	cfg := &config{baseURL: qwen.DefaultBaseURL, model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Analyze implements vision.Provider.
func (p *Provider) Analyze(ctx context.Context, req vision.AnalyzeRequest) (types.SceneSnapshot, error) {
	if len(req.ImageURLs) == 0 {
		return types.SceneSnapshot{}, fmt.Errorf("qwenvl: image URLs must not be empty")
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	var parts []oai.ChatCompletionContentPartUnionParam
	for _, url := range req.ImageURLs {
		parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
			URL: url,
		}))
	}
	parts = append(parts, oai.TextContentPart(prompt))

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(parts),
		},
		Temperature: param.NewOpt(0.0),
	})
	if err != nil {
		return types.SceneSnapshot{}, fmt.Errorf("qwenvl: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.SceneSnapshot{}, fmt.Errorf("qwenvl: empty choices in response")
	}

	return ParseSnapshot(resp.Choices[0].Message.Content), nil
}

// ParseSnapshot decodes the model's JSON reply into a SceneSnapshot. Models
// occasionally answer in prose despite the instruction; in that case the raw
// reply becomes the summary of an "unknown" scenario rather than an error.
func ParseSnapshot(reply string) types.SceneSnapshot {
	trimmed := strings.TrimSpace(reply)
	// Tolerate replies wrapped in a Markdown code fence.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var snap types.SceneSnapshot
	if err := json.Unmarshal([]byte(trimmed), &snap); err != nil || snap.ScenarioName == "" {
		return types.SceneSnapshot{
			ScenarioName: "unknown",
			Confidence:   0.5,
			Summary:      reply,
			RecommendedSettings: types.RecommendedSettings{
				ResponseStyle:      "neutral",
				FormalityLevel:     "balanced",
				CulturalAdaptation: true,
			},
		}
	}
	return snap
}
