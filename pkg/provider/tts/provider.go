// Package tts defines the Provider interface for speech-synthesis backends.
//
// Synthesis in ZhiYuAI is per-utterance, not streaming: the dialogue
// orchestrator hands over one complete reply string and receives one encoded
// audio clip back. The package also ships a deterministic beep generator used
// as the universal fallback so a synthesis failure never leaves the client
// silent.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// SynthesizeRequest describes one synthesis call.
type SynthesizeRequest struct {
	// Text is the reply to speak. Must be non-empty.
	Text string

	// Voice selects the voice profile (e.g., "Cherry"). Empty selects the
	// provider default.
	Voice string

	// Language is the language type hint for synthesis (e.g., "Chinese").
	// Empty selects the provider default.
	Language string
}

// Audio is one synthesized speech clip.
type Audio struct {
	// Data is the encoded audio bytes.
	Data []byte

	// Format is the container tag (e.g., "wav", "mp3").
	Format string
}

// Provider is the abstraction over any speech-synthesis backend.
type Provider interface {
	// Synthesize converts req.Text to speech. Failures are per-call; callers
	// substitute the deterministic Beep placeholder rather than abort.
	Synthesize(ctx context.Context, req SynthesizeRequest) (Audio, error)
}
