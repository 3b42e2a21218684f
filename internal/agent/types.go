// Package agent runs one conversational turn: decide, act, phrase,
// remember and deliver.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrBadRequest is returned by [Loop.HandleMessage] when the sender or
// the text is missing. Nothing else happens for such a request.
var ErrBadRequest = errors.New("jid and message are required")

var errEmptyCompletion = errors.New("empty completion")

// ProviderError is an LLM call that could not produce a usable answer:
// a transport fault, a provider error or an empty completion.
type ProviderError struct {
	Phase string // "decision" or "synthesis"
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s call to %s failed: %v", e.Phase, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Usage is the token count of one LLM call.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

// Decision is the model's choice for a user message: either reply text
// or a single tool call.
type Decision struct {
	Text     string
	ToolName string
	Args     map[string]any
	Usage    Usage
}

// IsToolCall reports whether the model asked for a tool.
func (d Decision) IsToolCall() bool {
	return d.ToolName != ""
}

// TurnKind says how a reply was produced.
type TurnKind int

const (
	TurnPlainReply TurnKind = iota
	TurnToolReply
	TurnFallback
)

func (k TurnKind) String() string {
	switch k {
	case TurnPlainReply:
		return "plain_reply"
	case TurnToolReply:
		return "tool_reply"
	case TurnFallback:
		return "fallback"
	default:
		return fmt.Sprintf("TurnKind(%d)", int(k))
	}
}

// TurnResult is the outcome of one handled message.
type TurnResult struct {
	RequestID   string
	Kind        TurnKind
	Reply       string
	ToolName    string
	ToolSuccess bool
	Delivered   bool
}

// generateRequestID returns a short id ("r_" plus 8 hex chars) used to
// correlate the log lines of one turn.
func generateRequestID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "r_" + hex[:8]
}
