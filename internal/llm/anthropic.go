package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenourinhas/concierge/internal/httpkit"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"

	anthropicDefaultMaxTokens = 1024
)

// AnthropicClient calls the Anthropic Messages API. Every concierge call
// is a single exchange (system prompt plus one user message), so prior
// tool turns are never replayed.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: anthropicBaseURL,
		logger:  logger.With("provider", "anthropic"),
		// Callers bound each call with a context deadline.
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature *float64             `json:"temperature,omitempty"`
	TopP        *float64             `json:"top_p,omitempty"`
	TopK        int                  `json:"top_k,omitempty"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

// anthropicToolChoice lets the model answer in text or call one tool.
type anthropicToolChoice struct {
	Type                   string `json:"type"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use"`
}

type anthropicBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicResponse struct {
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicErrorBody is the API's error envelope.
type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends a non-streaming Messages request.
func (c *AnthropicClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, opts Options) (*ChatResponse, error) {
	req := anthropicRequest{
		Model:     model,
		MaxTokens: opts.MaxTokens,
		TopK:      opts.TopK,
		Tools:     anthropicTools(tools),
	}
	req.System, req.Messages = splitSystem(messages)
	if req.MaxTokens == 0 {
		req.MaxTokens = anthropicDefaultMaxTokens
	}
	req.Temperature = opts.Temperature
	if opts.TopP != 0 {
		req.TopP = &opts.TopP
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = &anthropicToolChoice{Type: "auto", DisableParallelToolUse: true}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(body))

	start := time.Now()
	resp, err := c.do(ctx, http.MethodPost, "/v1/messages", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var raw anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out := fromAnthropic(&raw)
	out.TotalDuration = time.Since(start)

	if raw.StopReason == "max_tokens" {
		c.logger.Warn("reply cut at max_tokens", "model", model, "max_tokens", req.MaxTokens)
	}
	c.logger.Debug("response received",
		"model", out.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"tool_calls", len(out.Message.ToolCalls),
		"stop_reason", raw.StopReason,
		"elapsed", out.TotalDuration.Round(time.Millisecond),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", out.Message.Content)
	return out, nil
}

// Ping lists models, which checks reachability and the key without
// spending tokens.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/v1/models?limit=1", nil)
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status from Anthropic API: %d", resp.StatusCode)
	}
	return nil
}

func (c *AnthropicClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// apiError turns a non-200 response into an error, preferring the
// message from the API's error envelope.
func (c *AnthropicClient) apiError(resp *http.Response) error {
	raw := httpkit.ReadErrorBody(resp.Body, 4096)
	c.logger.Error("API error", "status", resp.StatusCode, "body", raw)

	var env anthropicErrorBody
	if json.Unmarshal([]byte(raw), &env) == nil && env.Error.Type != "" {
		return fmt.Errorf("anthropic API error %d (%s): %s", resp.StatusCode, env.Error.Type, env.Error.Message)
	}
	return fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, raw)
}

// splitSystem moves system messages into the top-level system prompt.
// Any other role is sent as a plain text turn.
func splitSystem(messages []Message) (string, []anthropicMessage) {
	var system []string
	var out []anthropicMessage
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			out = append(out, anthropicMessage{Role: RoleAssistant, Content: m.Content})
		default:
			out = append(out, anthropicMessage{Role: RoleUser, Content: m.Content})
		}
	}
	return strings.Join(system, "\n\n"), out
}

// anthropicTools converts OpenAI-style function definitions, as produced
// by the tool registry, to Anthropic tool definitions.
func anthropicTools(tools []map[string]any) []anthropicTool {
	var out []anthropicTool
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		schema := fn["parameters"]
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, anthropicTool{Name: name, Description: desc, InputSchema: schema})
	}
	return out
}

// fromAnthropic flattens content blocks into text plus tool calls.
func fromAnthropic(resp *anthropicResponse) *ChatResponse {
	var text strings.Builder
	var calls []ToolCall
	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			args := b.Input
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, ToolCall{
				ID:       b.ID,
				Function: FunctionCall{Name: b.Name, Arguments: args},
			})
		}
	}
	return &ChatResponse{
		Model: resp.Model,
		Message: Message{
			Role:      RoleAssistant,
			Content:   text.String(),
			ToolCalls: calls,
		},
		Done:         true,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
}
