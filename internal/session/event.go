// Package session implements the real-time streaming interaction session:
// the component that turns a duplex, multiplexed input stream (binary audio
// frames plus JSON control messages) into an ordered, cancelable output event
// stream while coordinating the speech-recognition engine, the vision
// analyzer, and the dialogue reply pipeline.
//
// The package is organised around six pieces:
//
//   - [Transport]: the duplex channel abstraction ([WSTransport] over a
//     WebSocket connection).
//   - [Ingestor]: audio chunking and the per-session byte budget.
//   - [Bridge]: the thread-safe hand-off from the recognition engine's
//     callback goroutine into an ordered event channel.
//   - [SceneCache]: dedup cache of the most recent analyzed camera frame.
//   - [Orchestrator]: the once-per-utterance reply cycle (LLM, then TTS).
//   - [Session]: the supervisor state machine that owns all of the above.
package session

// EngineEvent is one recognition-engine event after bridging. It is a closed
// sum type: the concrete variants below are the only implementations.
//
// Events are delivered in engine emission order. The stream of events ends
// with the bridge channel closing; [EngineDone] is the last event of a
// normally completed utterance, while an errored or abandoned stream closes
// without one.
type EngineEvent interface {
	engineEvent()
}

// EngineReady signals that the recognition service accepted the stream and
// is ready for audio.
type EngineReady struct{}

// EngineTranscript carries the aggregated utterance-so-far. The text is the
// complete recognised string, re-announced in full on every update, never a
// delta.
type EngineTranscript struct {
	Text string
}

// EngineTranslation carries the latest full translation of the utterance
// into one target language. A later event for the same language supersedes
// this one.
type EngineTranslation struct {
	Language string
	Text     string
}

// EngineError reports a mid-stream recognition failure. No EngineDone
// follows.
type EngineError struct {
	Message string
}

// EngineDone is the terminal event of a successfully flushed utterance. It
// carries the full per-segment transcript and the final per-language
// translation map.
type EngineDone struct {
	Segments     []string
	Translations map[string]string
}

func (EngineReady) engineEvent()       {}
func (EngineTranscript) engineEvent()  {}
func (EngineTranslation) engineEvent() {}
func (EngineError) engineEvent()       {}
func (EngineDone) engineEvent()        {}
