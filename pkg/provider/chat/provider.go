// Package chat abstracts the completion service behind panel generation.
//
// The panel generator only ever needs plain text in, plain text out: a
// system prompt, a short message history, and optionally a token-by-token
// stream for interactive use. Tool calling, vision and the rest of the
// modern LLM surface are deliberately absent from this interface.
//
// Implementations must be safe for concurrent use.
package chat

import "context"

// Message is one conversation entry. Role is the wire-level role string
// ("user", "assistant").
type Message struct {
	Role    string
	Content string
}

// Request describes one completion call.
type Request struct {
	// System is the system prompt, prepended when non-empty.
	System string

	// Messages is the conversation so far, oldest first.
	Messages []Message

	// Temperature is passed through when non-zero.
	Temperature float64

	// MaxTokens caps the response length when positive.
	MaxTokens int
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a complete (non-streamed) model reply.
type Response struct {
	Content string
	Usage   Usage
}

// Delta is one streamed fragment. Err is non-nil only on the final delta of
// a failed stream.
type Delta struct {
	Text string
	Err  error
}

// Provider is a chat-completion backend.
type Provider interface {
	// Complete runs one completion and returns the full reply.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream runs one completion and delivers the reply incrementally. The
	// returned channel is closed when the stream ends; a stream that fails
	// midway carries the error in its last [Delta].
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
}
