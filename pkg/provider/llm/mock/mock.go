// Package mock provides a deterministic llm.Provider for offline mode and
// tests. Replies are derived from the request's system prompt so the same
// mock serves the translation, scene-analysis, and dialogue prompts without
// external credentials.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm"
)

// sceneJSON is the canned scene-analysis reply. Field names match what the
// vision prompt asks the model to produce.
const sceneJSON = `{"scenario_name":"mock_scene","confidence":0.72,"summary":"Detected a generic collaborative scenario.","recommended_settings":{"response_style":"neutral","formality_level":"balanced","cultural_adaptation":true}}`

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Complete call.
	Err error

	// Reply, if non-empty, overrides the derived reply text.
	Reply string

	// Block, if non-nil, is received from before Complete returns. Tests use
	// it to hold a dialogue cycle open.
	Block <-chan struct{}

	// Calls records every request passed to Complete.
	Calls []llm.CompletionRequest
}

// Complete implements llm.Provider with deterministic prompt-aware replies.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	err := p.Err
	reply := p.Reply
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if reply != "" {
		return reply, nil
	}
	return derive(req), nil
}

// CallCount reports how many Complete calls have been recorded. Safe to call
// while other goroutines are inside Complete.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// derive picks a canned reply based on the request's system prompt.
func derive(req llm.CompletionRequest) string {
	var system, user string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = strings.ToLower(m.Content)
		case "user":
			user = m.Content
		}
	}

	switch {
	case strings.Contains(system, "visual scenes"):
		return sceneJSON
	case strings.Contains(system, "translation engine"):
		return translateFromPrompt(user)
	case strings.Contains(system, "live video conversation"):
		return "收到，我在认真听。"
	default:
		return "好的。"
	}
}

// translateFromPrompt parses the "Target language:" and "Text:" lines of the
// translation prompt and applies the pseudo translator.
func translateFromPrompt(prompt string) string {
	fields := map[string]string{}
	for _, line := range strings.Split(prompt, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	text, ok := fields["text"]
	if !ok {
		text = prompt
	}
	return Translate(fields["target language"], text)
}

// Translate returns a deterministic pseudo translation of text into the
// target language. English→Chinese goes through a small word dictionary so
// demo transcripts produce recognisable output; other language pairs get a
// visible "[lang translation]" tag.
func Translate(targetLanguage, text string) string {
	lang := strings.ToLower(targetLanguage)
	switch lang {
	case "":
		return text
	case "zh", "zh-cn", "chinese":
		return translateEnToZh(text)
	case "en", "english":
		return text
	default:
		return fmt.Sprintf("[%s translation] %s", lang, text)
	}
}

// enToZh is a tiny fixed dictionary covering the demo transcripts.
var enToZh = map[string]string{
	"hello":      "你好",
	"hi":         "嗨",
	"how":        "如何",
	"are":        "",
	"you":        "你",
	"today":      "今天",
	"the":        "",
	"weather":    "天气",
	"is":         "是",
	"really":     "非常",
	"nice":       "好",
	"good":       "好",
	"thanks":     "谢谢",
	"thank":      "感谢",
	"meeting":    "会议",
	"business":   "商务",
	"travel":     "出行",
	"world":      "世界",
	"from":       "来自",
	"gummy":      "Gummy",
	"translator": "翻译器",
}

// punctZh maps ASCII punctuation to its full-width counterpart.
var punctZh = map[string]string{
	",": "，",
	"?": "？",
	"!": "！",
	".": "。",
}

// translateEnToZh is a very small deterministic English-to-Chinese pseudo
// translator: dictionary words are swapped, punctuation is converted to
// full-width, and whitespace is removed.
func translateEnToZh(text string) string {
	var out strings.Builder
	for _, part := range splitWords(text) {
		if zh, ok := enToZh[strings.ToLower(part)]; ok {
			out.WriteString(zh)
			continue
		}
		// Non-dictionary token: drop whitespace, convert punctuation.
		for _, r := range part {
			if r == ' ' || r == '\t' || r == '\n' {
				continue
			}
			if zh, ok := punctZh[string(r)]; ok {
				out.WriteString(zh)
				continue
			}
			out.WriteRune(r)
		}
	}
	if out.Len() == 0 {
		return "译文不可用"
	}
	return out.String()
}

// splitWords splits text into alternating runs of word and non-word
// characters, preserving punctuation as separate tokens.
func splitWords(text string) []string {
	var parts []string
	var current strings.Builder
	currentIsWord := false

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		isWord := r == '\'' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if current.Len() > 0 && isWord != currentIsWord {
			flush()
		}
		currentIsWord = isWord
		current.WriteRune(r)
	}
	flush()
	return parts
}
