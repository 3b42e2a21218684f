package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cenourinhas/concierge/internal/llm"
	"github.com/cenourinhas/concierge/internal/prompts"
)

// ToolCatalog lists the tool declarations offered to the model.
type ToolCatalog interface {
	List() []map[string]any
}

// CallConfig holds the settings of one kind of LLM call.
type CallConfig struct {
	Model   string
	Options llm.Options
	// Timeout bounds a single call. Zero leaves only the caller's
	// context deadline.
	Timeout time.Duration
}

func (c CallConfig) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// Gateway asks the model what to do with a user message.
type Gateway struct {
	llm     llm.Client
	catalog ToolCatalog
	persona string
	call    CallConfig
	logger  *slog.Logger
}

// NewGateway creates a gateway. An empty persona uses the built-in one.
func NewGateway(client llm.Client, catalog ToolCatalog, persona string, call CallConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		llm:     client,
		catalog: catalog,
		persona: persona,
		call:    call,
		logger:  logger.With("component", "gateway"),
	}
}

// Decide sends the persona, the recent history and the user message to
// the model with every tool on offer. Only the first tool call is
// honored. Any fault, including an empty completion, is returned as a
// *ProviderError; there is no retry.
func (g *Gateway) Decide(ctx context.Context, history []string, userMessage string) (Decision, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.SystemPrompt(g.persona, history)},
		{Role: llm.RoleUser, Content: userMessage},
	}

	callCtx, cancel := g.call.bound(ctx)
	defer cancel()

	start := time.Now()
	resp, err := g.llm.Chat(callCtx, g.call.Model, messages, g.catalog.List(), g.call.Options)
	if err != nil {
		return Decision{}, &ProviderError{Phase: "decision", Model: g.call.Model, Err: err}
	}

	usage := Usage{Model: g.call.Model, InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}
	if resp.Model != "" {
		usage.Model = resp.Model
	}

	if calls := namedCalls(resp.Message.ToolCalls); len(calls) > 0 {
		if len(calls) > 1 {
			g.logger.Debug("ignoring extra tool calls", "requested", len(calls), "honored", calls[0].Function.Name)
		}
		g.logger.Debug("decision is a tool call",
			"tool", calls[0].Function.Name,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return Decision{
			ToolName: calls[0].Function.Name,
			Args:     calls[0].Function.Arguments,
			Usage:    usage,
		}, nil
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		return Decision{}, &ProviderError{Phase: "decision", Model: g.call.Model, Err: errEmptyCompletion}
	}

	g.logger.Debug("decision is a reply", "elapsed", time.Since(start).Round(time.Millisecond))
	return Decision{Text: resp.Message.Content, Usage: usage}, nil
}

// namedCalls drops tool calls without a function name.
func namedCalls(calls []llm.ToolCall) []llm.ToolCall {
	var out []llm.ToolCall
	for _, c := range calls {
		if strings.TrimSpace(c.Function.Name) != "" {
			out = append(out, c)
		}
	}
	return out
}
