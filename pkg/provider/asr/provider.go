// Package asr defines the Provider interface for streaming speech-recognition
// backends with optional inline translation.
//
// An ASR provider wraps a realtime recognition service (e.g., DashScope's
// Gummy realtime translator). The service is callback-driven: the caller
// constructs a Stream with a Callback, starts it, feeds raw audio frames, and
// receives recognition results through the callback methods. Callbacks fire on
// a goroutine owned by the provider implementation — never on the goroutine
// that calls SendAudioFrame — so consumers must bridge them into their own
// scheduling domain (see internal/session.Bridge).
//
// Implementations must be safe for concurrent use; Stop must be idempotent.
package asr

import "context"

// StreamConfig describes the audio format and recognition options for a new
// ASR stream.
type StreamConfig struct {
	// Model is the recognition model name (e.g., "gummy-realtime-v1").
	// An empty string selects the provider default.
	Model string

	// Format is the audio container/codec tag expected by the provider
	// (e.g., "wav", "pcm"). An empty string selects the provider default.
	Format string

	// SampleRate is the audio sample rate in Hz. Zero selects the provider
	// default (16000 for speech-optimised mono).
	SampleRate int

	// TargetLanguages lists the translation target languages. Empty disables
	// translation; recognition-only results are still emitted.
	TargetLanguages []string
}

// Result is the payload of a single recognition event. Either field may be
// nil when the event carries only the other kind of update.
type Result struct {
	// Transcription holds newly recognised source-language text, if any.
	Transcription *Transcription

	// Translations holds per-language translation updates, if any. Each
	// update carries the latest full translation for its language.
	Translations []Translation
}

// Transcription is one recognised text segment in the source language.
type Transcription struct {
	// Text is the recognised segment. Providers emit segments in utterance
	// order; they are not cumulative.
	Text string
}

// Translation is the latest translation of the utterance-so-far into one
// target language. A later Translation for the same language supersedes it.
type Translation struct {
	Language string
	Text     string
}

// Callback receives recognition lifecycle events. All methods are invoked
// from a provider-owned goroutine, one call at a time, in emission order.
// Implementations must not block indefinitely: the provider's event loop is
// stalled for the duration of each call.
type Callback interface {
	// OnOpen fires once when the recognition service has accepted the stream
	// and is ready for audio.
	OnOpen()

	// OnEvent fires for each recognition update.
	OnEvent(result Result)

	// OnError fires when recognition fails mid-stream. No further OnEvent or
	// OnComplete calls follow; OnClose may still fire.
	OnError(message string)

	// OnComplete fires once when the service has flushed all pending audio
	// after a Stop and emitted its final results.
	OnComplete()

	// OnClose fires when the underlying connection is torn down, whatever the
	// reason. It is always the last callback.
	OnClose()
}

// Stream is one live recognition stream. Start, SendAudioFrame, and Stop may
// all block on network I/O; callers that must not stall should invoke them
// from a dedicated goroutine.
type Stream interface {
	// Start opens the stream. It must be called exactly once, before any
	// SendAudioFrame. On failure no callbacks fire and the stream is dead.
	Start(ctx context.Context) error

	// SendAudioFrame delivers one chunk of audio bytes for recognition.
	// Calling SendAudioFrame after Stop returns an error.
	SendAudioFrame(ctx context.Context, chunk []byte) error

	// Stop signals end of audio and waits for the service to flush pending
	// results. The Callback's terminal methods fire before Stop returns.
	// Stop is idempotent; repeated calls return nil.
	Stop(ctx context.Context) error
}

// Provider is the abstraction over any streaming recognition backend.
type Provider interface {
	// NewStream constructs a Stream bound to cb. Construction validates the
	// configuration but performs no network I/O; call Stream.Start to open
	// the connection.
	NewStream(cfg StreamConfig, cb Callback) (Stream, error)
}
