// Package llm defines the Provider interface for chat-completion backends.
//
// The reasoning stage of ZhiYuAI only needs single-shot completions: compose a
// message list, get a reply string back. Streaming output, tool calling, and
// token accounting are deliberately absent — the dialogue orchestrator
// synthesizes speech from the complete reply, so partial text has no consumer.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"

	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty; a zero-value request is invalid.
type CompletionRequest struct {
	// Messages is the ordered conversation, including any "system" message.
	Messages []types.Message

	// Temperature controls output randomness. Zero means the provider default.
	Temperature float64

	// MaxTokens caps the reply length. Zero means the provider default.
	MaxTokens int
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req to the model and returns the reply text with
	// surrounding whitespace trimmed. A transport or timeout failure is
	// returned as an error; callers surface it per-cycle rather than
	// terminating the session.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
