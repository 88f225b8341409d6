package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
)

// FrameKind discriminates inbound transport frames.
type FrameKind int

const (
	// FrameBinary is an audio chunk.
	FrameBinary FrameKind = iota

	// FrameControl is a JSON control message.
	FrameControl

	// FrameClosed signals that the peer disconnected. No further frames
	// follow.
	FrameClosed
)

// Frame is one inbound transport message.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Transport is the duplex channel between one client and its session.
//
// Receive blocks until the next frame arrives; a disconnect is reported as a
// FrameClosed frame rather than an error. Send is best-effort: false means
// the peer is gone and the caller should stop producing output for this
// session — never treat it as a fatal internal fault. Close is idempotent.
type Transport interface {
	Receive(ctx context.Context) Frame
	Send(ctx context.Context, ev Event) bool
	Close() error
}

// Compile-time interface check.
var _ Transport = (*WSTransport)(nil)

// WSTransport is the WebSocket-backed [Transport].
type WSTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

// NewWSTransport wraps an accepted WebSocket connection. The caller keeps
// ownership of nothing: the session closes the connection via Close.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	// Live sessions stream multi-megabyte audio; lift the library's 32 KiB
	// default read limit well past the ingest budget.
	conn.SetReadLimit(16 * 1024 * 1024)
	return &WSTransport{conn: conn}
}

// Receive implements [Transport].
func (t *WSTransport) Receive(ctx context.Context) Frame {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		return Frame{Kind: FrameClosed}
	}
	if typ == websocket.MessageBinary {
		return Frame{Kind: FrameBinary, Data: data}
	}
	return Frame{Kind: FrameControl, Data: data}
}

// Send implements [Transport].
func (t *WSTransport) Send(ctx context.Context, ev Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	return t.conn.Write(ctx, websocket.MessageText, data) == nil
}

// Close implements [Transport].
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		_ = t.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}
