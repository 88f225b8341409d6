package session

import (
	"context"
	"errors"
	"testing"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
	asrmock "github.com/wanwindy/ZhiYuAI/pkg/provider/asr/mock"
)

func newTestStream(t *testing.T) *asrmock.Stream {
	t.Helper()
	p := &asrmock.Provider{}
	s, err := p.NewStream(asr.StreamConfig{}, NewBridge())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s.(*asrmock.Stream)
}

func TestIngestChunksLargeFrames(t *testing.T) {
	stream := newTestStream(t)
	ing := NewIngestor(stream, 1024, 4)

	if err := ing.Ingest(context.Background(), make([]byte, 10)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	frames := stream.Frames()
	if len(frames) != 3 {
		t.Fatalf("got %d chunks, want 3", len(frames))
	}
	if len(frames[0]) != 4 || len(frames[1]) != 4 || len(frames[2]) != 2 {
		t.Errorf("chunk sizes = %d,%d,%d, want 4,4,2", len(frames[0]), len(frames[1]), len(frames[2]))
	}
	if ing.Total() != 10 {
		t.Errorf("Total = %d, want 10", ing.Total())
	}
}

func TestIngestBudgetIsCumulative(t *testing.T) {
	stream := newTestStream(t)
	ing := NewIngestor(stream, 16, 8)

	// Exactly the ceiling is fine, spread over several frames.
	for range 4 {
		if err := ing.Ingest(context.Background(), make([]byte, 4)); err != nil {
			t.Fatalf("Ingest within budget: %v", err)
		}
	}

	// One more byte is terminal.
	err := ing.Ingest(context.Background(), []byte{0})
	if !errors.Is(err, ErrAudioBudget) {
		t.Fatalf("over-budget error = %v, want ErrAudioBudget", err)
	}

	// The violating frame never reaches the stream, and the failure sticks.
	if got := stream.TotalBytes(); got != 16 {
		t.Errorf("stream received %d bytes, want 16", got)
	}
	if err := ing.Ingest(context.Background(), []byte{0}); !errors.Is(err, ErrAudioBudget) {
		t.Errorf("second over-budget error = %v, want ErrAudioBudget", err)
	}
	if got := stream.TotalBytes(); got != 16 {
		t.Errorf("stream received %d bytes after sticky failure, want 16", got)
	}
}

func TestIngestEmptyFrameIsNoop(t *testing.T) {
	stream := newTestStream(t)
	ing := NewIngestor(stream, 16, 8)
	if err := ing.Ingest(context.Background(), nil); err != nil {
		t.Fatalf("Ingest(nil): %v", err)
	}
	if len(stream.Frames()) != 0 {
		t.Errorf("empty frame was forwarded")
	}
}

func TestIngestWrapsStreamErrors(t *testing.T) {
	stream := newTestStream(t)
	if err := stream.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	ing := NewIngestor(stream, 1024, 8)
	err := ing.Ingest(context.Background(), []byte{1, 2, 3})
	if err == nil {
		t.Fatal("Ingest after stop succeeded, want error")
	}
	if errors.Is(err, ErrAudioBudget) {
		t.Fatal("stream error misreported as budget violation")
	}
}
