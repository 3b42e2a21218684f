package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cenourinhas/concierge/internal/llm"
	"github.com/cenourinhas/concierge/internal/prompts"
	"github.com/cenourinhas/concierge/internal/tools"
)

// Synthesizer phrases a tool result as a short message for the guest.
type Synthesizer struct {
	llm    llm.Client
	call   CallConfig
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(client llm.Client, call CallConfig, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		llm:    client,
		call:   call,
		logger: logger.With("component", "synthesizer"),
	}
}

// Synthesize makes one tool-less LLM call with the tool's instruction as
// the system message and the JSON result as the user message. The text
// is returned verbatim, along with the tokens the call spent.
func (s *Synthesizer) Synthesize(ctx context.Context, toolName string, result tools.Result) (string, Usage, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", Usage{}, fmt.Errorf("encode %s result: %w", toolName, err)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.SynthesisInstruction(toolName)},
		{Role: llm.RoleUser, Content: string(payload)},
	}

	callCtx, cancel := s.call.bound(ctx)
	defer cancel()

	resp, err := s.llm.Chat(callCtx, s.call.Model, messages, nil, s.call.Options)
	if err != nil {
		return "", Usage{}, &ProviderError{Phase: "synthesis", Model: s.call.Model, Err: err}
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", Usage{}, &ProviderError{Phase: "synthesis", Model: s.call.Model, Err: errEmptyCompletion}
	}

	usage := Usage{Model: s.call.Model, InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}
	if resp.Model != "" {
		usage.Model = resp.Model
	}
	return resp.Message.Content, usage, nil
}
