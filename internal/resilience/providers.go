package resilience

import (
	"context"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision"
	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// LLMGuard implements [llm.Provider] over a breaker-protected chain of
// backends.
type LLMGuard struct {
	group *Group[llm.Provider]
}

var _ llm.Provider = (*LLMGuard)(nil)

// NewLLMGuard protects primary with a breaker. Fallbacks are registered via
// [LLMGuard.Add].
func NewLLMGuard(name string, primary llm.Provider, cfg BreakerConfig) *LLMGuard {
	return &LLMGuard{group: NewGroup(name, primary, cfg)}
}

// Add registers a fallback backend tried after the earlier entries.
func (g *LLMGuard) Add(name string, p llm.Provider) {
	g.group.Add(name, p)
}

// Complete implements [llm.Provider].
func (g *LLMGuard) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return Do(g.group, func(p llm.Provider) (string, error) {
		return p.Complete(ctx, req)
	})
}

// TTSGuard implements [tts.Provider] over a breaker-protected chain.
type TTSGuard struct {
	group *Group[tts.Provider]
}

var _ tts.Provider = (*TTSGuard)(nil)

// NewTTSGuard protects primary with a breaker.
func NewTTSGuard(name string, primary tts.Provider, cfg BreakerConfig) *TTSGuard {
	return &TTSGuard{group: NewGroup(name, primary, cfg)}
}

// Add registers a fallback backend.
func (g *TTSGuard) Add(name string, p tts.Provider) {
	g.group.Add(name, p)
}

// Synthesize implements [tts.Provider].
func (g *TTSGuard) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Audio, error) {
	return Do(g.group, func(p tts.Provider) (tts.Audio, error) {
		return p.Synthesize(ctx, req)
	})
}

// VisionGuard implements [vision.Provider] over a breaker-protected chain.
type VisionGuard struct {
	group *Group[vision.Provider]
}

var _ vision.Provider = (*VisionGuard)(nil)

// NewVisionGuard protects primary with a breaker.
func NewVisionGuard(name string, primary vision.Provider, cfg BreakerConfig) *VisionGuard {
	return &VisionGuard{group: NewGroup(name, primary, cfg)}
}

// Add registers a fallback backend.
func (g *VisionGuard) Add(name string, p vision.Provider) {
	g.group.Add(name, p)
}

// Analyze implements [vision.Provider].
func (g *VisionGuard) Analyze(ctx context.Context, req vision.AnalyzeRequest) (types.SceneSnapshot, error) {
	return Do(g.group, func(p vision.Provider) (types.SceneSnapshot, error) {
		return p.Analyze(ctx, req)
	})
}
