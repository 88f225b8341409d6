// Package mock provides a deterministic vision.Provider for offline mode and
// tests. It records every Analyze call so tests can assert on scene-cache
// dedup behaviour.
package mock

import (
	"context"
	"sync"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision"
	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// DefaultSnapshot is the canned analysis result.
var DefaultSnapshot = types.SceneSnapshot{
	ScenarioName: "mock_scene",
	Confidence:   0.72,
	Summary:      "Detected a generic collaborative scenario.",
	RecommendedSettings: types.RecommendedSettings{
		ResponseStyle:      "neutral",
		FormalityLevel:     "balanced",
		CulturalAdaptation: true,
	},
}

// Provider is a mock implementation of vision.Provider.
type Provider struct {
	mu sync.Mutex

	// Snapshot is returned from Analyze. Zero value means DefaultSnapshot.
	Snapshot types.SceneSnapshot

	// Err, if non-nil, is returned from every Analyze call.
	Err error

	// Calls records every request passed to Analyze.
	Calls []vision.AnalyzeRequest
}

// Analyze implements vision.Provider.
func (p *Provider) Analyze(_ context.Context, req vision.AnalyzeRequest) (types.SceneSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return types.SceneSnapshot{}, p.Err
	}
	if p.Snapshot.ScenarioName == "" {
		return DefaultSnapshot, nil
	}
	return p.Snapshot, nil
}

// CallCount reports how many times Analyze has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
