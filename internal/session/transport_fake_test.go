package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

// fakeTransport scripts inbound frames through a channel and records every
// outbound event. Closing the frames channel models a client disconnect.
type fakeTransport struct {
	frames chan Frame

	mu     sync.Mutex
	events []Event
	closed bool

	// failAfter makes Send return false once this many events have been
	// accepted. Negative means never fail.
	failAfter int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan Frame, 16), failAfter: -1}
}

func (t *fakeTransport) Receive(_ context.Context) Frame {
	f, ok := <-t.frames
	if !ok {
		return Frame{Kind: FrameClosed}
	}
	return f
}

func (t *fakeTransport) Send(_ context.Context, ev Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failAfter >= 0 && len(t.events) >= t.failAfter {
		return false
	}
	t.events = append(t.events, ev)
	return true
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) sent() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

func (t *fakeTransport) binary(data []byte) {
	t.frames <- Frame{Kind: FrameBinary, Data: data}
}

func (t *fakeTransport) control(tb testing.TB, msg any) {
	tb.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		tb.Fatalf("marshal control: %v", err)
	}
	t.frames <- Frame{Kind: FrameControl, Data: data}
}

func (t *fakeTransport) disconnect() {
	close(t.frames)
}

// eventTypes flattens recorded events to their wire type tags for compact
// order assertions.
func eventTypes(tb testing.TB, events []Event) []string {
	tb.Helper()
	types := make([]string, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			tb.Fatalf("marshal event: %v", err)
		}
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &tag); err != nil {
			tb.Fatalf("unmarshal event tag: %v", err)
		}
		types = append(types, tag.Type)
	}
	return types
}
