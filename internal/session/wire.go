package session

import (
	"encoding/json"
	"fmt"

	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// Event is one JSON message sent to the client. It is a closed sum type;
// every variant marshals to an object carrying a "type" discriminator.
type Event interface {
	wireEvent()
}

// ReadyEvent tells the client the recognition stream is accepting audio.
type ReadyEvent struct{}

func (ReadyEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (ReadyEvent) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"ready"}`), nil
}

// TranscriptEvent carries the aggregated utterance-so-far.
type TranscriptEvent struct {
	Text string
}

func (TranscriptEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (e TranscriptEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"transcript", e.Text})
}

// TranslationEvent carries the latest translation for one target language.
type TranslationEvent struct {
	Language string
	Text     string
}

func (TranslationEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (e TranslationEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Language string `json:"language"`
		Text     string `json:"text"`
	}{"translation", e.Language, e.Text})
}

// SceneEvent carries one scene analysis result, flattened alongside the
// type tag.
type SceneEvent struct {
	Snapshot types.SceneSnapshot
}

func (SceneEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (e SceneEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string                    `json:"type"`
		ScenarioName string                    `json:"scenario_name"`
		Confidence   float64                   `json:"confidence"`
		Summary      string                    `json:"summary"`
		Settings     types.RecommendedSettings `json:"recommended_settings"`
	}{"scene", e.Snapshot.ScenarioName, e.Snapshot.Confidence, e.Snapshot.Summary, e.Snapshot.RecommendedSettings})
}

// AssistantTextEvent carries the generated reply text.
type AssistantTextEvent struct {
	Text string
}

func (AssistantTextEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (e AssistantTextEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"assistant_text", e.Text})
}

// AssistantAudioEvent carries one synthesized speech clip, base64-encoded.
type AssistantAudioEvent struct {
	AudioBase64 string
	AudioFormat string
}

func (AssistantAudioEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (e AssistantAudioEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		AudioBase64 string `json:"audio_base64"`
		AudioFormat string `json:"audio_format"`
	}{"assistant_audio", e.AudioBase64, e.AudioFormat})
}

// ErrorEvent reports a failure scoped to one pipeline stage.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", e.Message})
}

// DoneData is the optional payload of a DoneEvent: the full transcript and
// final translations of the completed utterance.
type DoneData struct {
	Transcripts  []string           `json:"transcripts"`
	Translations []TranslationEntry `json:"translations"`
}

// TranslationEntry is one language/text pair in a DoneData payload.
type TranslationEntry struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// DoneEvent marks the end of one utterance cycle. The client may treat it as
// "ready for the next utterance" unconditionally. Data is nil for bare
// terminal signals (empty transcript, post-error flush).
type DoneEvent struct {
	Data *DoneData
}

func (DoneEvent) wireEvent() {}

// MarshalJSON implements json.Marshaler.
func (e DoneEvent) MarshalJSON() ([]byte, error) {
	if e.Data == nil {
		return []byte(`{"type":"done"}`), nil
	}
	return json.Marshal(struct {
		Type string   `json:"type"`
		Data DoneData `json:"data"`
	}{"done", *e.Data})
}

// ---- inbound control messages ----

// Control message types accepted from the client.
const (
	// ControlFrame submits a camera frame for scene analysis.
	ControlFrame = "frame"

	// ControlStop requests a graceful end of the audio stream.
	ControlStop = "stop"
)

// Control is one parsed inbound JSON control message.
type Control struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url"`
	ImageBase64 string `json:"image_base64"`
}

// ImageRef returns the image reference carried by a frame control: the URL
// if present, otherwise the base64 payload wrapped as a data URI.
func (c Control) ImageRef() string {
	if c.ImageURL != "" {
		return c.ImageURL
	}
	if c.ImageBase64 != "" {
		return "data:image/jpeg;base64," + c.ImageBase64
	}
	return ""
}

// ParseControl decodes one inbound control message.
func ParseControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, fmt.Errorf("session: parse control: %w", err)
	}
	return c, nil
}
