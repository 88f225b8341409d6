// Package mock provides a deterministic in-process implementation of the asr
// interfaces. It backs both offline/mock mode (no DashScope credentials) and
// unit tests that need a scripted recognition engine.
//
// The mock engine buffers audio silently and replays its scripted transcript
// when the stream is stopped, mimicking a realtime recognizer that flushes
// final results on end-of-audio. Callbacks fire synchronously from the Stop
// caller's goroutine, which — like the real engine — is never the consumer
// loop's goroutine.
package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

// DefaultTranscript is the canned recognition result used when a Provider has
// no explicit Transcript configured.
var DefaultTranscript = []string{"hello from gummy translator"}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// NewStreamErr, if non-nil, is returned from NewStream. Models engine
	// construction failure.
	NewStreamErr error

	// StartErr, if non-nil, is returned from Stream.Start on every stream
	// this provider creates. Models engine start failure.
	StartErr error

	// Transcript holds the segments replayed on Stop. Nil means
	// DefaultTranscript; an explicit empty slice means silence.
	Transcript []string

	// Translate produces the translation of text into language for streams
	// with translation targets. Nil falls back to a "[lang] text" tag.
	Translate func(language, text string) string

	// FailWith, if non-empty, makes streams report this message via OnError
	// on Stop instead of completing normally.
	FailWith string

	// Streams records every stream created by NewStream, in order.
	Streams []*Stream
}

// NewStream implements asr.Provider.
func (p *Provider) NewStream(cfg asr.StreamConfig, cb asr.Callback) (asr.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NewStreamErr != nil {
		return nil, p.NewStreamErr
	}
	transcript := p.Transcript
	if transcript == nil {
		transcript = DefaultTranscript
	}
	s := &Stream{
		cfg:        cfg,
		cb:         cb,
		startErr:   p.StartErr,
		transcript: transcript,
		translate:  p.Translate,
		failWith:   p.FailWith,
	}
	p.Streams = append(p.Streams, s)
	return s, nil
}

// Stream is a mock implementation of asr.Stream.
type Stream struct {
	cfg        asr.StreamConfig
	cb         asr.Callback
	startErr   error
	transcript []string
	translate  func(language, text string) string
	failWith   string

	mu        sync.Mutex
	started   bool
	stopped   bool
	stopCalls int
	frames    [][]byte
}

// Start implements asr.Stream. It fires OnOpen unless the provider was
// configured with a start error.
func (s *Stream) Start(_ context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("asr mock: stream already started")
	}
	if s.startErr != nil {
		s.mu.Unlock()
		return s.startErr
	}
	s.started = true
	s.mu.Unlock()

	s.cb.OnOpen()
	return nil
}

// SendAudioFrame implements asr.Stream. Frames are recorded for inspection.
func (s *Stream) SendAudioFrame(_ context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.New("asr mock: stream not started")
	}
	if s.stopped {
		return errors.New("asr mock: stream is stopped")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.frames = append(s.frames, buf)
	return nil
}

// Stop implements asr.Stream. The first call replays the scripted transcript
// (and translations) through the callback and then fires the terminal
// callbacks; later calls are no-ops.
func (s *Stream) Stop(_ context.Context) error {
	s.mu.Lock()
	s.stopCalls++
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if s.failWith != "" {
		s.cb.OnError(s.failWith)
		s.cb.OnClose()
		return nil
	}

	var spoken []string
	for _, segment := range s.transcript {
		spoken = append(spoken, segment)
		result := asr.Result{
			Transcription: &asr.Transcription{Text: segment},
		}
		aggregated := strings.Join(spoken, " ")
		for _, lang := range s.cfg.TargetLanguages {
			result.Translations = append(result.Translations, asr.Translation{
				Language: lang,
				Text:     s.translateText(lang, aggregated),
			})
		}
		s.cb.OnEvent(result)
	}

	s.cb.OnComplete()
	s.cb.OnClose()
	return nil
}

// translateText applies the configured translator, or a visible tag fallback.
func (s *Stream) translateText(language, text string) string {
	if s.translate != nil {
		return s.translate(language, text)
	}
	return fmt.Sprintf("[%s translation] %s", language, text)
}

// Frames returns a copy of all audio chunks delivered so far.
func (s *Stream) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// TotalBytes returns the total audio byte count delivered so far.
func (s *Stream) TotalBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		n += len(f)
	}
	return n
}

// StopCalls reports how many times Stop has been invoked.
func (s *Stream) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}
