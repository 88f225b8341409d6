// Package types holds shared domain types used across the ZhiYuAI provider
// and session packages. Keeping them here avoids import cycles between the
// provider interfaces and the components that consume them.
package types

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// RecommendedSettings carries the communication-strategy hints produced by
// scene analysis. The JSON field names match the wire format sent to clients.
type RecommendedSettings struct {
	// ResponseStyle suggests the reply tone (e.g., "formal", "friendly", "neutral").
	ResponseStyle string `json:"response_style"`

	// FormalityLevel suggests how formal replies should be (e.g., "balanced").
	FormalityLevel string `json:"formality_level"`

	// CulturalAdaptation indicates whether replies should adapt idioms and
	// references to the listener's culture.
	CulturalAdaptation bool `json:"cultural_adaptation"`
}

// SceneSnapshot is the result of analyzing one camera frame. A session caches
// at most one snapshot; a new distinct frame supersedes the previous one.
type SceneSnapshot struct {
	// ScenarioName labels the detected scenario (e.g., "business_meeting").
	ScenarioName string `json:"scenario_name"`

	// Confidence is the model's confidence in the label, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Summary is a short natural-language description of the scene. It is the
	// part that feeds into the dialogue prompt.
	Summary string `json:"summary"`

	// RecommendedSettings holds the suggested communication strategy.
	RecommendedSettings RecommendedSettings `json:"recommended_settings"`
}
