// Package mock provides a deterministic tts.Provider for offline mode and
// tests. Synthesize returns the shared beep clip so callers always receive
// playable audio without network access.
package mock

import (
	"context"
	"sync"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is returned from Synthesize. Nil Data means the beep clip.
	Audio tts.Audio

	// Err, if non-nil, is returned from every Synthesize call.
	Err error

	// Block, if non-nil, is received from before Synthesize returns. Tests
	// use it to hold a dialogue cycle open.
	Block <-chan struct{}

	// Calls records every request passed to Synthesize.
	Calls []tts.SynthesizeRequest
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Audio, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	block := p.Block
	err := p.Err
	audio := p.Audio
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		}
	}
	if err != nil {
		return tts.Audio{}, err
	}
	if audio.Data == nil {
		return tts.Beep(), nil
	}
	return audio, nil
}

// CallCount reports how many times Synthesize has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
