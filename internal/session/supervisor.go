package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wanwindy/ZhiYuAI/internal/history"
	"github.com/wanwindy/ZhiYuAI/internal/observe"
	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

// Mode selects the session variant.
type Mode int

const (
	// ModeTranslate streams transcripts and translations and forwards the
	// utterance result as a done event. No assistant turn.
	ModeTranslate Mode = iota

	// ModeDialogue additionally runs the dialogue orchestrator once per
	// completed utterance and accepts camera frames for scene context.
	ModeDialogue
)

// State is the session lifecycle state.
type State int32

const (
	StateInit State = iota
	StateStreaming
	StateDraining
	StateClosed
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config assembles the collaborators of one session. It is read-only after
// [New].
type Config struct {
	// Mode selects translate-only or scene-dialogue behaviour.
	Mode Mode

	// ASR constructs the recognition stream. Required.
	ASR asr.Provider

	// Stream is passed to ASR.NewStream.
	Stream asr.StreamConfig

	// Orchestrator runs dialogue cycles. Required in ModeDialogue.
	Orchestrator *Orchestrator

	// Scene caches camera-frame analyses. Optional; used in ModeDialogue.
	Scene *SceneCache

	// MaxAudioBytes caps cumulative session audio. Zero selects 5 MiB.
	MaxAudioBytes int64

	// ChunkSize bounds individual writes to the engine. Zero selects 8192.
	ChunkSize int

	// History records scene analyses. Optional.
	History history.Store

	// Metrics records session instrumentation. Optional.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Session supervises one duplex client connection: it owns the recognition
// stream, the bridge, the ingest budget, and the scene cache, and guarantees
// that the engine's stop routine runs exactly once and the event consumer is
// joined before Run returns — whichever way the session ends.
type Session struct {
	id        string
	cfg       Config
	transport Transport
	bridge    *Bridge
	log       *slog.Logger

	state    atomic.Int32
	stopOnce sync.Once
	stream   asr.Stream
	wg       sync.WaitGroup
}

// New creates a Session over transport. id labels log lines and history
// records.
func New(id string, transport Transport, cfg Config) *Session {
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 5 * 1024 * 1024
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 8192
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		id:        id,
		cfg:       cfg,
		transport: transport,
		bridge:    NewBridge(),
		log:       cfg.Logger.With("session_id", id, "mode", cfg.Mode == ModeDialogue),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	// Failed is a sink: once failed, stay failed.
	for {
		cur := s.state.Load()
		if State(cur) == StateFailed && st != StateFailed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}

// Run drives the session to completion. It returns after the transport is
// closed, the engine is stopped, and the consumer goroutine has drained the
// bridge. The returned error is non-nil only for engine start failures;
// every other ending is a normal session outcome.
func (s *Session) Run(ctx context.Context) error {
	stream, err := s.cfg.ASR.NewStream(s.cfg.Stream, s.bridge)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("session: create recognition stream: %w", err))
	}
	s.stream = stream

	started := time.Now()
	if err := stream.Start(ctx); err != nil {
		return s.fail(ctx, fmt.Errorf("session: start recognition stream: %w", err))
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
		defer s.cfg.Metrics.ActiveSessions.Add(ctx, -1)
		defer func() {
			s.cfg.Metrics.ASRDuration.Record(ctx, time.Since(started).Seconds())
		}()
	}

	s.setState(StateStreaming)
	s.log.Info("session streaming")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ctx)
	}()

	s.readLoop(ctx)

	// Normal exits enter Draining; the oversize path has already forced
	// Failed and setState keeps it there.
	s.setState(StateDraining)
	s.stopEngine(ctx)
	s.wg.Wait()

	s.setState(StateClosed)
	_ = s.transport.Close()
	s.log.Info("session closed", "state", s.State().String())
	return nil
}

// fail handles engine construction/start failures: one error event, engine
// stop still attempted, transport closed.
func (s *Session) fail(ctx context.Context, err error) error {
	s.setState(StateFailed)
	s.log.Error("session failed", "error", err)
	s.transport.Send(ctx, ErrorEvent{Message: err.Error()})
	s.stopEngine(ctx)
	_ = s.transport.Close()
	return err
}

// stopEngine invokes the engine stop path exactly once and guarantees the
// bridge terminates even if the engine never delivers a terminal callback.
func (s *Session) stopEngine(ctx context.Context) {
	s.stopOnce.Do(func() {
		if s.stream != nil {
			if err := s.stream.Stop(ctx); err != nil {
				s.log.Warn("recognition stream stop failed", "error", err)
			}
		}
		s.bridge.EnsureFinished()
	})
}

// readLoop consumes inbound transport frames until stop, disconnect, or a
// terminal ingest error. It runs on Run's goroutine; all blocking engine
// writes happen here so they never stall event consumption.
func (s *Session) readLoop(ctx context.Context) {
	ingest := NewIngestor(s.stream, s.cfg.MaxAudioBytes, s.cfg.ChunkSize)

	for {
		frame := s.transport.Receive(ctx)
		switch frame.Kind {
		case FrameClosed:
			s.log.Debug("client disconnected", "ingested_bytes", ingest.Total())
			return

		case FrameBinary:
			if err := s.ingestFrame(ctx, ingest, frame.Data); err != nil {
				return
			}

		case FrameControl:
			ctl, err := ParseControl(frame.Data)
			if err != nil {
				// Malformed control messages are ignored, matching the
				// tolerance of the inbound protocol.
				s.log.Debug("ignoring malformed control message", "error", err)
				continue
			}
			switch ctl.Type {
			case ControlStop:
				s.log.Debug("client requested stop", "ingested_bytes", ingest.Total())
				return
			case ControlFrame:
				s.handleFrame(ctx, ctl)
			}
		}
	}
}

// ingestFrame forwards one audio frame and handles the budget violation
// path: terminal error to the client, session moves to Failed.
func (s *Session) ingestFrame(ctx context.Context, ingest *Ingestor, data []byte) error {
	err := ingest.Ingest(ctx, data)
	if err == nil {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.AudioBytes.Add(ctx, int64(len(data)))
		}
		return nil
	}

	if errors.Is(err, ErrAudioBudget) {
		s.setState(StateFailed)
		s.log.Warn("audio budget exceeded", "ingested_bytes", ingest.Total())
		s.bridge.FinishWithError(err.Error())
		return err
	}

	// Engine write failure: terminal for recognition, surfaced through the
	// bridge like a mid-stream engine error.
	s.log.Warn("audio forwarding failed", "error", err)
	s.bridge.FinishWithError(err.Error())
	return err
}

// handleFrame runs scene analysis for one camera frame (dialogue mode).
func (s *Session) handleFrame(ctx context.Context, ctl Control) {
	if s.cfg.Scene == nil {
		return
	}
	ref := ctl.ImageRef()
	if ref == "" {
		return
	}

	snap, cached, err := s.cfg.Scene.Update(ctx, ref)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSceneAnalysis(ctx, cached)
	}
	if err != nil {
		s.log.Warn("scene analysis failed", "error", err)
		s.transport.Send(ctx, ErrorEvent{Message: "场景识别失败: " + err.Error()})
		return
	}

	if !cached && s.cfg.History != nil {
		_ = s.cfg.History.LogScene(ctx, history.SceneRecord{SessionID: s.id, Snapshot: snap})
	}
	s.transport.Send(ctx, SceneEvent{Snapshot: snap})
}

// consume drains the bridge in emission order, forwarding live events to the
// transport and triggering the dialogue cycle on utterance completion. When
// the bridge closes without an EngineDone (error, disconnect, abandoned
// engine) a bare done event still terminates the protocol.
func (s *Session) consume(ctx context.Context) {
	sawDone := false
	peerGone := false

	send := func(ev Event) {
		if peerGone {
			return
		}
		if !s.transport.Send(ctx, ev) {
			// Peer gone: keep draining the bridge so the engine callback
			// goroutine is never blocked, but stop producing output.
			peerGone = true
		}
	}

	for ev := range s.bridge.Events() {
		switch ev := ev.(type) {
		case EngineReady:
			send(ReadyEvent{})
		case EngineTranscript:
			send(TranscriptEvent{Text: ev.Text})
		case EngineTranslation:
			send(TranslationEvent{Language: ev.Language, Text: ev.Text})
		case EngineError:
			send(ErrorEvent{Message: ev.Message})
		case EngineDone:
			sawDone = true
			if peerGone {
				continue
			}
			if s.cfg.Mode == ModeDialogue && s.cfg.Orchestrator != nil {
				s.cfg.Orchestrator.RunCycle(ctx, s.transport, s.id, ev.Segments, s.sceneSummary())
			} else {
				send(DoneEvent{Data: UtteranceData(ev)})
			}
		}
	}

	if !sawDone {
		send(DoneEvent{})
	}
}

func (s *Session) sceneSummary() string {
	if s.cfg.Scene == nil {
		return ""
	}
	return s.cfg.Scene.Summary()
}

// UtteranceData shapes a completed utterance for the wire, with languages in
// deterministic order. Shared by the live endpoints and the streaming REST
// endpoint.
func UtteranceData(ev EngineDone) *DoneData {
	data := &DoneData{Transcripts: ev.Segments}

	languages := make([]string, 0, len(ev.Translations))
	for lang := range ev.Translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	for _, lang := range languages {
		data.Translations = append(data.Translations, TranslationEntry{
			Language: lang,
			Text:     ev.Translations[lang],
		})
	}
	return data
}
