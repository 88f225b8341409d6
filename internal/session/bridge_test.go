package session

import (
	"testing"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

func drain(b *Bridge) []EngineEvent {
	var out []EngineEvent
	for ev := range b.Events() {
		out = append(out, ev)
	}
	return out
}

func TestBridgeAggregatesTranscript(t *testing.T) {
	b := NewBridge()
	b.OnOpen()
	b.OnEvent(asr.Result{Transcription: &asr.Transcription{Text: "hello"}})
	b.OnEvent(asr.Result{Transcription: &asr.Transcription{Text: "world"}})
	b.OnComplete()

	events := drain(b)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %#v", len(events), events)
	}
	if _, ok := events[0].(EngineReady); !ok {
		t.Fatalf("first event = %#v, want EngineReady", events[0])
	}
	if tr := events[1].(EngineTranscript); tr.Text != "hello" {
		t.Errorf("first transcript = %q, want %q", tr.Text, "hello")
	}
	if tr := events[2].(EngineTranscript); tr.Text != "hello world" {
		t.Errorf("second transcript = %q, want %q", tr.Text, "hello world")
	}
	done := events[3].(EngineDone)
	if len(done.Segments) != 2 || done.Segments[0] != "hello" || done.Segments[1] != "world" {
		t.Errorf("done segments = %v", done.Segments)
	}
}

func TestBridgeSkipsEmptySegments(t *testing.T) {
	b := NewBridge()
	b.OnEvent(asr.Result{Transcription: &asr.Transcription{Text: "  "}})
	b.OnEvent(asr.Result{Transcription: &asr.Transcription{Text: "ok"}})
	b.OnComplete()

	events := drain(b)
	if len(events) != 2 {
		t.Fatalf("got %d events, want transcript + done: %#v", len(events), events)
	}
	if tr := events[0].(EngineTranscript); tr.Text != "ok" {
		t.Errorf("transcript = %q, want %q", tr.Text, "ok")
	}
}

func TestBridgeTranslationOverwrites(t *testing.T) {
	b := NewBridge()
	b.OnEvent(asr.Result{Translations: []asr.Translation{{Language: "zh", Text: "你"}}})
	b.OnEvent(asr.Result{Translations: []asr.Translation{{Language: "zh", Text: "你好"}, {Language: "en", Text: "hello"}}})
	b.OnComplete()

	events := drain(b)
	done := events[len(events)-1].(EngineDone)
	if done.Translations["zh"] != "你好" {
		t.Errorf("zh translation = %q, want latest %q", done.Translations["zh"], "你好")
	}
	if done.Translations["en"] != "hello" {
		t.Errorf("en translation = %q, want %q", done.Translations["en"], "hello")
	}

	// Incremental events were still emitted per update.
	var incremental int
	for _, ev := range events {
		if _, ok := ev.(EngineTranslation); ok {
			incremental++
		}
	}
	if incremental != 3 {
		t.Errorf("incremental translation events = %d, want 3", incremental)
	}
}

func TestBridgeErrorTerminatesWithoutDone(t *testing.T) {
	b := NewBridge()
	b.OnOpen()
	b.OnError("engine exploded")
	b.OnClose()

	events := drain(b)
	if len(events) != 2 {
		t.Fatalf("got %d events, want ready + error: %#v", len(events), events)
	}
	if e := events[1].(EngineError); e.Message != "engine exploded" {
		t.Errorf("error message = %q", e.Message)
	}
}

func TestBridgeEmptyErrorMessageGetsDefault(t *testing.T) {
	b := NewBridge()
	b.OnError("")
	events := drain(b)
	if e := events[0].(EngineError); e.Message != "translation recognizer error" {
		t.Errorf("error message = %q", e.Message)
	}
}

func TestBridgeTerminatesExactlyOnce(t *testing.T) {
	b := NewBridge()
	b.OnComplete()
	// Late callbacks after the terminal must not panic or re-close.
	b.OnError("late")
	b.OnClose()
	b.OnComplete()
	b.EnsureFinished()
	b.OnEvent(asr.Result{Transcription: &asr.Transcription{Text: "dropped"}})

	events := drain(b)
	if len(events) != 1 {
		t.Fatalf("got %d events, want only the first done: %#v", len(events), events)
	}
	if _, ok := events[0].(EngineDone); !ok {
		t.Fatalf("event = %#v, want EngineDone", events[0])
	}
}

func TestBridgeEnsureFinishedIdempotent(t *testing.T) {
	b := NewBridge()
	b.EnsureFinished()
	b.EnsureFinished()
	if events := drain(b); len(events) != 0 {
		t.Fatalf("got %d events, want none", len(events))
	}
}

func TestBridgeFinishWithError(t *testing.T) {
	b := NewBridge()
	b.FinishWithError("音频流超过大小限制")
	events := drain(b)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if e := events[0].(EngineError); e.Message != "音频流超过大小限制" {
		t.Errorf("error message = %q", e.Message)
	}
}
