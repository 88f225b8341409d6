// Package gummy provides a DashScope-backed ASR provider using the Gummy
// realtime translation-recognition WebSocket API. It implements the
// asr.Provider interface.
package gummy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

const (
	defaultEndpoint   = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"
	defaultModel      = "gummy-realtime-v1"
	defaultFormat     = "wav"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Gummy Provider.
type Option func(*Provider)

// WithModel sets the recognition model (e.g., "gummy-realtime-v1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithFormat sets the audio format tag sent to DashScope (e.g., "wav", "pcm").
func WithFormat(format string) Option {
	return func(p *Provider) {
		p.format = format
	}
}

// WithSampleRate sets the provider-level default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithEndpoint overrides the DashScope WebSocket endpoint. Used in tests to
// point at a local server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements asr.Provider backed by the DashScope Gummy realtime API.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	format     string
	sampleRate int
}

// New creates a new Gummy Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gummy: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		format:     defaultFormat,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// NewStream implements asr.Provider. It validates the configuration and
// builds the run-task instruction; no network I/O happens until Start.
func (p *Provider) NewStream(cfg asr.StreamConfig, cb asr.Callback) (asr.Stream, error) {
	if cb == nil {
		return nil, errors.New("gummy: callback must not be nil")
	}
	return &stream{
		provider: p,
		task:     p.buildRunTask(cfg),
		cb:       cb,
	}, nil
}

// ---- wire messages ----

// header is the common envelope header for DashScope WebSocket messages.
type header struct {
	Action       string `json:"action,omitempty"`
	Event        string `json:"event,omitempty"`
	TaskID       string `json:"task_id"`
	Streaming    string `json:"streaming,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// runTaskPayload configures the recognition task on stream open.
type runTaskPayload struct {
	TaskGroup  string         `json:"task_group"`
	Task       string         `json:"task"`
	Function   string         `json:"function"`
	Model      string         `json:"model"`
	Parameters taskParameters `json:"parameters"`
	Input      struct{}       `json:"input"`
}

// taskParameters mirrors the Gummy realtime parameter block.
type taskParameters struct {
	Format                     string   `json:"format"`
	SampleRate                 int      `json:"sample_rate"`
	TranscriptionEnabled       bool     `json:"transcription_enabled"`
	TranslationEnabled         bool     `json:"translation_enabled"`
	TranslationTargetLanguages []string `json:"translation_target_languages,omitempty"`
}

// instruction is a full client → server control message.
type instruction struct {
	Header  header `json:"header"`
	Payload any    `json:"payload"`
}

// event is a full server → client message.
type event struct {
	Header  header `json:"header"`
	Payload struct {
		Output struct {
			Transcription *struct {
				Text        string `json:"text"`
				SentenceEnd bool   `json:"sentence_end"`
			} `json:"transcription"`
			Translations []struct {
				Lang        string `json:"lang"`
				Text        string `json:"text"`
				SentenceEnd bool   `json:"sentence_end"`
			} `json:"translations"`
		} `json:"output"`
	} `json:"payload"`
}

// buildRunTask constructs the run-task instruction for the given config.
func (p *Provider) buildRunTask(cfg asr.StreamConfig) instruction {
	model := cfg.Model
	if model == "" {
		model = p.model
	}
	format := cfg.Format
	if format == "" {
		format = p.format
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	return instruction{
		Header: header{
			Action:    "run-task",
			TaskID:    newTaskID(),
			Streaming: "duplex",
		},
		Payload: runTaskPayload{
			TaskGroup: "audio",
			Task:      "asr",
			Function:  "translation-recognition",
			Model:     model,
			Parameters: taskParameters{
				Format:                     format,
				SampleRate:                 sr,
				TranscriptionEnabled:       true,
				TranslationEnabled:         len(cfg.TargetLanguages) > 0,
				TranslationTargetLanguages: cfg.TargetLanguages,
			},
		},
	}
}

// newTaskID generates a random 32-hex-char task identifier.
func newTaskID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// ---- stream ----

// stream is a live Gummy recognition stream. It implements asr.Stream.
type stream struct {
	provider *Provider
	task     instruction
	cb       asr.Callback

	conn *websocket.Conn

	mu      sync.Mutex
	started bool
	stopped bool

	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Start dials DashScope, submits the run-task instruction, and waits for the
// task-started acknowledgement before spawning the event read loop.
func (s *stream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("gummy: stream already started")
	}
	s.started = true
	s.mu.Unlock()

	headers := http.Header{}
	headers.Set("Authorization", "bearer "+s.provider.apiKey)
	headers.Set("X-DashScope-DataInspection", "enable")

	conn, _, err := websocket.Dial(ctx, s.provider.endpoint, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("gummy: dial: %w", err)
	}
	// Audio uploads can outpace result downloads on long utterances.
	conn.SetReadLimit(1 << 20)
	s.conn = conn

	raw, err := json.Marshal(s.task)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode run-task")
		return fmt.Errorf("gummy: encode run-task: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
		conn.Close(websocket.StatusInternalError, "send run-task")
		return fmt.Errorf("gummy: send run-task: %w", err)
	}

	// Wait for task-started (or task-failed) before accepting audio.
	for {
		ev, err := s.readEvent(ctx)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "await task-started")
			return fmt.Errorf("gummy: await task-started: %w", err)
		}
		switch ev.Header.Event {
		case "task-started":
			s.cb.OnOpen()
			s.wg.Add(1)
			go s.readLoop()
			return nil
		case "task-failed":
			conn.Close(websocket.StatusNormalClosure, "task failed")
			return fmt.Errorf("gummy: task failed: %s", ev.Header.ErrorMessage)
		default:
			// Ignore unrelated events until the task is acknowledged.
		}
	}
}

// SendAudioFrame delivers one binary audio chunk to DashScope.
func (s *stream) SendAudioFrame(ctx context.Context, chunk []byte) error {
	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.mu.Unlock()
	if !started {
		return errors.New("gummy: stream not started")
	}
	if stopped {
		return errors.New("gummy: stream is stopped")
	}
	if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
		return fmt.Errorf("gummy: send audio frame: %w", err)
	}
	return nil
}

// Stop sends the finish-task instruction and waits for the read loop to
// observe task-finished. Idempotent; repeated calls return nil.
func (s *stream) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.stopped = true
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.stopOnce.Do(func() {
		finish := instruction{
			Header: header{
				Action:    "finish-task",
				TaskID:    s.task.Header.TaskID,
				Streaming: "duplex",
			},
			Payload: struct {
				Input struct{} `json:"input"`
			}{},
		}
		raw, _ := json.Marshal(finish)
		// A write failure here means the connection is already dead; the
		// read loop will observe it and fire the terminal callbacks.
		_ = s.conn.Write(ctx, websocket.MessageText, raw)
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "stream stopped")
	})
	return nil
}

// readEvent reads and decodes one server event.
func (s *stream) readEvent(ctx context.Context) (event, error) {
	_, raw, err := s.conn.Read(ctx)
	if err != nil {
		return event{}, err
	}
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// readLoop dispatches server events to the callback until the task finishes,
// fails, or the connection drops. OnClose always fires last.
func (s *stream) readLoop() {
	defer s.wg.Done()
	defer s.cb.OnClose()

	ctx := context.Background()
	for {
		ev, err := s.readEvent(ctx)
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if !stopped {
				s.cb.OnError(err.Error())
			}
			return
		}

		switch ev.Header.Event {
		case "result-generated":
			if r, ok := convertResult(ev); ok {
				s.cb.OnEvent(r)
			}
		case "task-finished":
			s.cb.OnComplete()
			return
		case "task-failed":
			msg := ev.Header.ErrorMessage
			if msg == "" {
				msg = "recognition task failed"
			}
			s.cb.OnError(msg)
			return
		}
	}
}

// convertResult maps a result-generated event to an asr.Result. Partial
// (non-sentence-end) transcriptions are dropped: consumers aggregate whole
// segments, so forwarding partials would duplicate text.
func convertResult(ev event) (asr.Result, bool) {
	var r asr.Result

	if t := ev.Payload.Output.Transcription; t != nil && t.SentenceEnd && t.Text != "" {
		r.Transcription = &asr.Transcription{Text: t.Text}
	}
	for _, tr := range ev.Payload.Output.Translations {
		if tr.Text == "" {
			continue
		}
		r.Translations = append(r.Translations, asr.Translation{
			Language: tr.Lang,
			Text:     tr.Text,
		})
	}

	if r.Transcription == nil && len(r.Translations) == 0 {
		return asr.Result{}, false
	}
	return r, true
}
