package session

import (
	"context"
	"sync"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/vision"
	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// SceneCache holds at most one analyzed camera frame per session, keyed by
// image reference. A repeated reference is served from cache without a
// provider call; a distinct reference replaces the cached snapshot.
//
// Updates run on the session's read goroutine while the dialogue cycle reads
// the summary from the consumer goroutine, hence the mutex.
type SceneCache struct {
	provider vision.Provider

	mu       sync.Mutex
	lastRef  string
	snapshot *types.SceneSnapshot
}

// NewSceneCache creates an empty cache backed by provider.
func NewSceneCache(provider vision.Provider) *SceneCache {
	return &SceneCache{provider: provider}
}

// Update analyzes the frame at ref, or returns the cached snapshot when ref
// matches the previous frame. The second return value reports a cache hit.
// On provider failure the cached snapshot is left untouched.
func (c *SceneCache) Update(ctx context.Context, ref string) (types.SceneSnapshot, bool, error) {
	c.mu.Lock()
	if ref == c.lastRef && c.snapshot != nil {
		snap := *c.snapshot
		c.mu.Unlock()
		return snap, true, nil
	}
	c.mu.Unlock()

	snap, err := c.provider.Analyze(ctx, vision.AnalyzeRequest{ImageURLs: []string{ref}})
	if err != nil {
		return types.SceneSnapshot{}, false, err
	}

	c.mu.Lock()
	c.lastRef = ref
	c.snapshot = &snap
	c.mu.Unlock()
	return snap, false, nil
}

// Summary returns the cached snapshot's summary, or the empty string when no
// frame has been analyzed yet.
func (c *SceneCache) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return ""
	}
	return c.snapshot.Summary
}
