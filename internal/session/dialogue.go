package session

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/wanwindy/ZhiYuAI/internal/history"
	"github.com/wanwindy/ZhiYuAI/internal/observe"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/llm"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/tts"
	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// replySystemPrompt steers the reply model during live dialogue.
const replySystemPrompt = "You are a helpful multilingual assistant engaged in a live video conversation. " +
	"Use the provided scene summary to keep responses context-aware and concise."

// Orchestrator runs one dialogue cycle per completed utterance: compose a
// reply from the transcript and the cached scene summary, synthesize it, and
// emit the cycle's events. Stage failures degrade the cycle — an error event
// scoped to the failing stage — but the cycle always ends with done and the
// session keeps accepting utterances.
//
// RunCycle is invoked inline from the session's consumer goroutine, which is
// what guarantees single-flight: a later utterance's Done cannot be observed
// until the previous cycle returned.
type Orchestrator struct {
	llm      llm.Provider
	tts      tts.Provider
	voice    string
	language string
	store    history.Store
	metrics  *observe.Metrics
}

// NewOrchestrator creates an Orchestrator. store and metrics may be nil;
// voice and language select the synthesis profile.
func NewOrchestrator(llmProvider llm.Provider, ttsProvider tts.Provider, voice, language string, store history.Store, metrics *observe.Metrics) *Orchestrator {
	return &Orchestrator{
		llm:      llmProvider,
		tts:      ttsProvider,
		voice:    voice,
		language: language,
		store:    store,
		metrics:  metrics,
	}
}

// RunCycle executes one dialogue cycle. Every exit path emits a terminal
// done event unless the transport reports the peer gone first.
func (o *Orchestrator) RunCycle(ctx context.Context, t Transport, sessionID string, segments []string, sceneSummary string) {
	userText := strings.TrimSpace(strings.Join(segments, " "))
	if userText == "" {
		// No reply for silence.
		t.Send(ctx, DoneEvent{})
		return
	}

	o.logUtterance(ctx, sessionID, "user", userText)

	reply, err := o.complete(ctx, userText, sceneSummary)
	if err != nil {
		o.recordCycle(ctx, "llm_error")
		if !t.Send(ctx, ErrorEvent{Message: err.Error()}) {
			return
		}
		t.Send(ctx, DoneEvent{})
		return
	}

	reply = strings.TrimSpace(reply)
	if !t.Send(ctx, AssistantTextEvent{Text: reply}) {
		return
	}
	o.logUtterance(ctx, sessionID, "assistant", reply)

	audio, synthesized := o.synthesize(ctx, t, reply)
	if !t.Send(ctx, AssistantAudioEvent{
		AudioBase64: base64.StdEncoding.EncodeToString(audio.Data),
		AudioFormat: audio.Format,
	}) {
		return
	}

	if synthesized {
		o.recordCycle(ctx, "ok")
	}
	t.Send(ctx, DoneEvent{})
}

// complete asks the reply model for one response.
func (o *Orchestrator) complete(ctx context.Context, userText, sceneSummary string) (string, error) {
	start := time.Now()
	reply, err := o.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{
			{Role: "system", Content: replySystemPrompt},
			{Role: "user", Content: "[场景摘要]\n" + sceneSummary + "\n\n[用户]\n" + userText},
		},
		Temperature: 0.6,
	})
	if o.metrics != nil {
		o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	return reply, err
}

// synthesize converts the reply to speech. A synthesis failure emits a
// stage-scoped error event and substitutes the deterministic beep so the
// client always receives audio. The second return value reports whether the
// provider call succeeded.
func (o *Orchestrator) synthesize(ctx context.Context, t Transport, reply string) (tts.Audio, bool) {
	start := time.Now()
	audio, err := o.tts.Synthesize(ctx, tts.SynthesizeRequest{
		Text:     reply,
		Voice:    o.voice,
		Language: o.language,
	})
	if o.metrics != nil {
		o.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		o.recordCycle(ctx, "tts_error")
		t.Send(ctx, ErrorEvent{Message: "TTS失败: " + err.Error()})
		return tts.Beep(), false
	}
	return audio, true
}

func (o *Orchestrator) logUtterance(ctx context.Context, sessionID, role, text string) {
	if o.store == nil {
		return
	}
	_ = o.store.LogUtterance(ctx, history.Utterance{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
	})
}

func (o *Orchestrator) recordCycle(ctx context.Context, status string) {
	if o.metrics != nil {
		o.metrics.RecordDialogueCycle(ctx, status)
	}
}
