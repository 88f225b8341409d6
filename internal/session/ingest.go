package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/wanwindy/ZhiYuAI/pkg/provider/asr"
)

// ErrAudioBudget is returned by [Ingestor.Ingest] when the cumulative audio
// for the session exceeds the configured ceiling. The message is the exact
// string surfaced to clients.
var ErrAudioBudget = errors.New("音频流超过大小限制")

// Ingestor forwards inbound audio frames to the recognition stream, chunked
// to bounded writes, and enforces the per-session byte budget.
//
// The budget is cumulative across the whole session, not per frame: feeding
// frames summing to exactly the ceiling succeeds, one byte more is terminal.
// Ingest is called only from the session's read goroutine, so the counter
// needs no synchronization.
type Ingestor struct {
	stream    asr.Stream
	maxBytes  int64
	chunkSize int
	total     int64
	exceeded  bool
}

// NewIngestor creates an Ingestor writing to stream. maxBytes and chunkSize
// must be positive.
func NewIngestor(stream asr.Stream, maxBytes int64, chunkSize int) *Ingestor {
	return &Ingestor{stream: stream, maxBytes: maxBytes, chunkSize: chunkSize}
}

// Ingest forwards one audio frame. It returns [ErrAudioBudget] once the
// cumulative byte count passes the ceiling; after that every call fails
// without touching the stream.
func (i *Ingestor) Ingest(ctx context.Context, frame []byte) error {
	if i.exceeded {
		return ErrAudioBudget
	}
	if len(frame) == 0 {
		return nil
	}

	i.total += int64(len(frame))
	if i.total > i.maxBytes {
		i.exceeded = true
		return ErrAudioBudget
	}

	for off := 0; off < len(frame); off += i.chunkSize {
		end := min(off+i.chunkSize, len(frame))
		if err := i.stream.SendAudioFrame(ctx, frame[off:end]); err != nil {
			return fmt.Errorf("session: forward audio chunk: %w", err)
		}
	}
	return nil
}

// Total reports the cumulative ingested byte count.
func (i *Ingestor) Total() int64 {
	return i.total
}
