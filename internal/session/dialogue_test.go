package session

import (
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/wanwindy/ZhiYuAI/internal/history"
	llmmock "github.com/wanwindy/ZhiYuAI/pkg/provider/llm/mock"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
	ttsmock "github.com/wanwindy/ZhiYuAI/pkg/provider/tts/mock"
)

func TestRunCycleHappyPath(t *testing.T) {
	llmP := &llmmock.Provider{Reply: "It looks sunny out there."}
	ttsP := &ttsmock.Provider{Audio: tts.Audio{Data: []byte("fake-wav"), Format: "wav"}}
	store := history.NewMemoryStore()
	orch := NewOrchestrator(llmP, ttsP, "Cherry", "Chinese", store, nil)
	tr := newFakeTransport()

	orch.RunCycle(context.Background(), tr, "s1", []string{"how", "is the weather"}, "Person on a balcony.")

	events := tr.sent()
	if got, want := eventTypes(t, events), []string{"assistant_text", "assistant_audio", "done"}; !slices.Equal(got, want) {
		t.Fatalf("event order = %v, want %v", got, want)
	}

	if txt := events[0].(AssistantTextEvent); txt.Text != "It looks sunny out there." {
		t.Errorf("assistant text = %q", txt.Text)
	}
	audio := events[1].(AssistantAudioEvent)
	if audio.AudioFormat != "wav" {
		t.Errorf("audio format = %q", audio.AudioFormat)
	}
	if data, _ := base64.StdEncoding.DecodeString(audio.AudioBase64); string(data) != "fake-wav" {
		t.Errorf("audio payload = %q", data)
	}

	// Prompt carries both the scene summary and the joined transcript.
	if n := len(llmP.Calls); n != 1 {
		t.Fatalf("llm called %d times, want 1", n)
	}
	user := llmP.Calls[0].Messages[1].Content
	if !strings.Contains(user, "[场景摘要]\nPerson on a balcony.") {
		t.Errorf("user prompt missing scene summary:\n%s", user)
	}
	if !strings.Contains(user, "[用户]\nhow is the weather") {
		t.Errorf("user prompt missing joined transcript:\n%s", user)
	}

	// TTS got the configured voice profile.
	if req := ttsP.Calls[0]; req.Voice != "Cherry" || req.Language != "Chinese" {
		t.Errorf("tts request = %#v", req)
	}

	// Both turns were recorded.
	utts, err := store.RecentUtterances(context.Background(), "s1", 0)
	if err != nil {
		t.Fatalf("RecentUtterances: %v", err)
	}
	if len(utts) != 2 || utts[0].Role != "user" || utts[1].Role != "assistant" {
		t.Errorf("history = %#v", utts)
	}
}

func TestRunCycleEmptyTranscript(t *testing.T) {
	orch := NewOrchestrator(&llmmock.Provider{}, &ttsmock.Provider{}, "", "", nil, nil)
	tr := newFakeTransport()

	orch.RunCycle(context.Background(), tr, "s1", []string{"  ", ""}, "")

	if got, want := eventTypes(t, tr.sent()), []string{"done"}; !slices.Equal(got, want) {
		t.Errorf("events = %v, want bare done", got)
	}
}

func TestRunCycleLLMFailure(t *testing.T) {
	llmP := &llmmock.Provider{Err: errors.New("model overloaded")}
	ttsP := &ttsmock.Provider{}
	orch := NewOrchestrator(llmP, ttsP, "", "", nil, nil)
	tr := newFakeTransport()

	orch.RunCycle(context.Background(), tr, "s1", []string{"hello"}, "")

	events := tr.sent()
	if got, want := eventTypes(t, events), []string{"error", "done"}; !slices.Equal(got, want) {
		t.Fatalf("event order = %v, want %v", got, want)
	}
	if e := events[0].(ErrorEvent); e.Message != "model overloaded" {
		t.Errorf("error message = %q, want the raw provider error", e.Message)
	}
	if ttsP.CallCount() != 0 {
		t.Error("tts called despite llm failure")
	}
}

func TestRunCycleTTSFailureSubstitutesBeep(t *testing.T) {
	llmP := &llmmock.Provider{Reply: "still here"}
	ttsP := &ttsmock.Provider{Err: errors.New("quota exceeded")}
	orch := NewOrchestrator(llmP, ttsP, "", "", nil, nil)
	tr := newFakeTransport()

	orch.RunCycle(context.Background(), tr, "s1", []string{"hello"}, "")

	events := tr.sent()
	if got, want := eventTypes(t, events), []string{"assistant_text", "error", "assistant_audio", "done"}; !slices.Equal(got, want) {
		t.Fatalf("event order = %v, want %v", got, want)
	}
	if e := events[1].(ErrorEvent); e.Message != "TTS失败: quota exceeded" {
		t.Errorf("error message = %q", e.Message)
	}

	audio := events[2].(AssistantAudioEvent)
	beep := tts.Beep()
	if audio.AudioFormat != beep.Format {
		t.Errorf("substitute format = %q, want %q", audio.AudioFormat, beep.Format)
	}
	data, err := base64.StdEncoding.DecodeString(audio.AudioBase64)
	if err != nil {
		t.Fatalf("decode substitute audio: %v", err)
	}
	if string(data) != string(beep.Data) {
		t.Error("substitute audio is not the beep clip")
	}
}

func TestRunCycleStopsWhenPeerGone(t *testing.T) {
	llmP := &llmmock.Provider{Reply: "unheard"}
	ttsP := &ttsmock.Provider{}
	orch := NewOrchestrator(llmP, ttsP, "", "", nil, nil)
	tr := newFakeTransport()
	tr.failAfter = 1 // assistant_text goes through, everything after fails

	orch.RunCycle(context.Background(), tr, "s1", []string{"hello"}, "")

	if got, want := eventTypes(t, tr.sent()), []string{"assistant_text"}; !slices.Equal(got, want) {
		t.Errorf("events = %v, want only assistant_text", got)
	}
	if ttsP.CallCount() != 1 {
		// Synthesis already ran before the failed send; that is fine. The
		// point is the cycle returned instead of pushing more events.
		t.Logf("tts calls = %d", ttsP.CallCount())
	}
}
