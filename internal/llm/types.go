// Package llm talks to the chat-completion providers behind the
// concierge: a local Ollama server and, optionally, the Anthropic API.
// Every provider speaks the provider-neutral types below; wire formats
// stay inside each client.
package llm

import (
	"log/slog"
	"time"
)

// LevelTrace matches config.LevelTrace. Request payloads are logged at
// this level.
const LevelTrace = slog.Level(-8)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a chat transcript.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool the model asked to run. ID is only set by
// providers that assign one.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its arguments, already decoded
// from JSON.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Options are sampling parameters. A zero field is left out of the
// request so the provider default applies, except Temperature: nil
// leaves the default and a pointer to 0 asks for greedy decoding.
type Options struct {
	Temperature *float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// Temperature returns v as an [Options] temperature.
func Temperature(v float64) *float64 {
	return &v
}

// ChatResponse is a finished completion.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message
	Done      bool

	InputTokens   int
	OutputTokens  int
	TotalDuration time.Duration
}
