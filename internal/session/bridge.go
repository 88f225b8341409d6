package session

import (
	"strings"
	"sync"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

// defaultBridgeBuffer is the hand-off channel capacity. A full channel makes
// the engine callback goroutine wait, which is the intended backpressure:
// the engine cannot outrun the consumer by more than the buffer.
const defaultBridgeBuffer = 64

// Bridge adapts the recognition engine's callback interface into an ordered
// channel of [EngineEvent] values.
//
// Callbacks fire on a goroutine owned by the ASR provider; the bridge is the
// sole synchronization point between that goroutine and the session's
// consumer. Every enqueue and the terminal channel close happen under one
// mutex, so a late callback can never send on a closed channel.
//
// Exactly one terminal signal (the channel close) is guaranteed, whether the
// engine finished normally (OnComplete), errored (OnError), was torn down
// (OnClose), or never called back at all (EnsureFinished).
//
// Bridge implements [asr.Callback].
type Bridge struct {
	mu     sync.Mutex
	events chan EngineEvent
	ended  bool

	// Aggregation state, mutated only from the callback goroutine.
	segments     []string
	translations map[string]string
}

// Compile-time interface check.
var _ asr.Callback = (*Bridge)(nil)

// NewBridge returns a ready-to-use Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		events:       make(chan EngineEvent, defaultBridgeBuffer),
		translations: make(map[string]string),
	}
}

// Events returns the ordered event stream. The channel closes after the
// terminal callback; [EngineDone] is the final event of a normal utterance.
func (b *Bridge) Events() <-chan EngineEvent {
	return b.events
}

// enqueue delivers ev unless the stream has ended. It may block when the
// channel is full; the close happens under the same mutex, so blocking here
// never races a concurrent close.
func (b *Bridge) enqueue(ev EngineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return
	}
	b.events <- ev
}

// finish closes the event channel exactly once.
func (b *Bridge) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return
	}
	b.ended = true
	close(b.events)
}

// EnsureFinished guarantees the consumer is released even if the engine
// never delivered a terminal callback. Safe to call any number of times,
// from any goroutine.
func (b *Bridge) EnsureFinished() {
	b.finish()
}

// FinishWithError enqueues a final error and terminates the stream. Used by
// the session for failures that originate outside the engine (for example
// the audio byte budget).
func (b *Bridge) FinishWithError(message string) {
	b.enqueue(EngineError{Message: message})
	b.finish()
}

// ---- asr.Callback ----

// OnOpen implements [asr.Callback].
func (b *Bridge) OnOpen() {
	b.enqueue(EngineReady{})
}

// OnEvent implements [asr.Callback]. Transcript segments are appended and
// the full aggregated string is re-announced; translation updates overwrite
// the per-language latest value and emit an incremental event.
func (b *Bridge) OnEvent(result asr.Result) {
	if tr := result.Transcription; tr != nil {
		if text := strings.TrimSpace(tr.Text); text != "" {
			b.segments = append(b.segments, text)
			b.enqueue(EngineTranscript{Text: strings.Join(b.segments, " ")})
		}
	}
	for _, tl := range result.Translations {
		if tl.Text == "" {
			continue
		}
		b.translations[tl.Language] = tl.Text
		b.enqueue(EngineTranslation{Language: tl.Language, Text: tl.Text})
	}
}

// OnError implements [asr.Callback]. The stream terminates without an
// EngineDone.
func (b *Bridge) OnError(message string) {
	if message == "" {
		message = "translation recognizer error"
	}
	b.FinishWithError(message)
}

// OnComplete implements [asr.Callback]. The aggregated result is delivered
// as the final event before the channel closes.
func (b *Bridge) OnComplete() {
	segments := make([]string, len(b.segments))
	copy(segments, b.segments)
	translations := make(map[string]string, len(b.translations))
	for lang, text := range b.translations {
		translations[lang] = text
	}
	b.enqueue(EngineDone{Segments: segments, Translations: translations})
	b.finish()
}

// OnClose implements [asr.Callback]. It is a pure safety net: if a terminal
// callback already ran this is a no-op.
func (b *Bridge) OnClose() {
	b.finish()
}
