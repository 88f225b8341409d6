// Package vision defines the Provider interface for scene-analysis backends.
//
// A vision provider looks at one or more camera frames and produces a
// structured SceneSnapshot: a scenario label, a confidence, a summary, and a
// recommended communication strategy. The session layer caches the most
// recent snapshot and feeds its summary into the dialogue prompt.
//
// Implementations must be safe for concurrent use.
package vision

import (
	"context"

	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// AnalyzeRequest describes one scene-analysis call.
type AnalyzeRequest struct {
	// ImageURLs references the frames to analyze. Entries may be https URLs
	// or data URLs carrying base64-encoded image bytes. Must be non-empty.
	ImageURLs []string

	// Prompt is the analysis instruction shown to the model alongside the
	// images. Empty selects the provider's default prompt.
	Prompt string
}

// Provider is the abstraction over any scene-analysis backend.
type Provider interface {
	// Analyze submits the frames for analysis and returns the resulting
	// snapshot. Failures are per-call: the caller keeps any previously
	// cached snapshot and the session continues.
	Analyze(ctx context.Context, req AnalyzeRequest) (types.SceneSnapshot, error)
}
