package llm

import "context"

// Client is a chat-completion provider.
type Client interface {
	// Chat runs one non-streaming completion. tools may be nil when the
	// model should answer in text only.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, opts Options) (*ChatResponse, error)

	// Ping reports whether the provider can be reached.
	Ping(ctx context.Context) error
}
