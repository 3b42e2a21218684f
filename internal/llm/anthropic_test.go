package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSplitSystem(t *testing.T) {
	system, msgs := splitSystem([]Message{
		{Role: "system", Content: "Você é o assistente do casamento."},
		{Role: "system", Content: "Contexto anterior."},
		{Role: "user", Content: "Oi!"},
		{Role: "assistant", Content: "Olá!"},
		{Role: "tool", Content: `{"success":true}`},
	})

	if system != "Você é o assistente do casamento.\n\nContexto anterior." {
		t.Errorf("system = %q", system)
	}
	want := []anthropicMessage{
		{Role: "user", Content: "Oi!"},
		{Role: "assistant", Content: "Olá!"},
		{Role: "user", Content: `{"success":true}`},
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}

func TestAnthropicTools(t *testing.T) {
	tools := []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "start_gift_payment",
				"description": "Gera um link de pagamento",
				"parameters": map[string]any{
					"type":     "object",
					"required": []string{"gift_id"},
				},
			},
		},
		{"type": "function", "function": map[string]any{"name": "get_gift_options"}},
		{"type": "not-a-function"},
	}

	got := anthropicTools(tools)
	if len(got) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(got))
	}
	if got[0].Name != "start_gift_payment" || got[0].Description == "" {
		t.Errorf("unexpected first tool: %+v", got[0])
	}
	if got[1].InputSchema == nil {
		t.Error("missing parameters should default to an empty object schema")
	}
	if anthropicTools(nil) != nil {
		t.Error("nil tools should convert to nil")
	}
}

func TestFromAnthropic(t *testing.T) {
	resp := &anthropicResponse{
		Model: "claude-3-5-haiku-latest",
		Content: []anthropicBlock{
			{Type: "text", Text: "Um momento. "},
			{Type: "tool_use", ID: "toolu_1", Name: "start_gift_payment", Input: map[string]any{"gift_id": float64(3)}},
		},
	}
	resp.Usage.InputTokens = 50
	resp.Usage.OutputTokens = 12

	got := fromAnthropic(resp)
	if got.Message.Content != "Um momento. " {
		t.Errorf("content = %q", got.Message.Content)
	}
	if len(got.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(got.Message.ToolCalls))
	}
	tc := got.Message.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Function.Name != "start_gift_payment" || tc.Function.Arguments["gift_id"] != float64(3) {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if got.InputTokens != 50 || got.OutputTokens != 12 {
		t.Errorf("tokens = %d/%d", got.InputTokens, got.OutputTokens)
	}
}

func TestFromAnthropic_ToolUseWithoutInput(t *testing.T) {
	got := fromAnthropic(&anthropicResponse{Content: []anthropicBlock{{Type: "tool_use", Name: "get_gift_options"}}})
	if len(got.Message.ToolCalls) != 1 || got.Message.ToolCalls[0].Function.Arguments == nil {
		t.Errorf("tool call without input should get empty arguments: %+v", got.Message.ToolCalls)
	}
}

func TestClientsImplementInterface(t *testing.T) {
	var _ Client = (*AnthropicClient)(nil)
	var _ Client = (*OllamaClient)(nil)
	var _ Client = (*Router)(nil)
}

func TestAnthropicChat_RequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"msg_1","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"Oi!"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-test", nil)
	c.baseURL = srv.URL

	tools := []map[string]any{{"type": "function", "function": map[string]any{"name": "get_gift_options"}}}
	resp, err := c.Chat(t.Context(), "claude-3-5-haiku-latest",
		[]Message{{Role: "system", Content: "persona"}, {Role: "user", Content: "oi"}}, tools,
		Options{Temperature: Temperature(0.4), TopK: 20})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Message.Content != "Oi!" || resp.InputTokens != 10 || resp.OutputTokens != 2 {
		t.Errorf("response = %+v", resp)
	}

	if got["system"] != "persona" {
		t.Errorf("system = %v", got["system"])
	}
	if got["temperature"] != 0.4 {
		t.Errorf("temperature = %v", got["temperature"])
	}
	if _, ok := got["top_p"]; ok {
		t.Error("zero top_p should be omitted")
	}
	if got["top_k"] != float64(20) {
		t.Errorf("top_k = %v", got["top_k"])
	}
	if got["max_tokens"] != float64(anthropicDefaultMaxTokens) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	choice, _ := got["tool_choice"].(map[string]any)
	if choice["type"] != "auto" || choice["disable_parallel_tool_use"] != true {
		t.Errorf("tool_choice = %v, want auto with parallel tool use disabled", got["tool_choice"])
	}
	if _, ok := got["stream"]; ok {
		t.Error("request should not carry a stream flag")
	}
}

func TestAnthropicChat_NoToolsNoToolChoice(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"model":"m","content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-test", nil)
	c.baseURL = srv.URL
	if _, err := c.Chat(t.Context(), "m", []Message{{Role: "user", Content: "oi"}}, nil, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["tool_choice"]; ok {
		t.Error("tool_choice sent without tools")
	}
}

func TestAnthropicChat_APIError(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want string
	}{
		{"envelope", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, "529 (overloaded_error): Overloaded"},
		{"plain", http.StatusBadGateway, "bad gateway", "502: bad gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewAnthropicClient("sk-test", nil)
			c.baseURL = srv.URL
			_, err := c.Chat(t.Context(), "m", []Message{{Role: "user", Content: "oi"}}, nil, Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestAnthropicPing(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr string
	}{
		{"ok", http.StatusOK, ""},
		{"unauthorized", http.StatusUnauthorized, "invalid API key"},
		{"unavailable", http.StatusServiceUnavailable, "unexpected status from Anthropic API: 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/v1/models" {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			c := NewAnthropicClient("sk-test", nil)
			c.baseURL = srv.URL
			err := c.Ping(t.Context())
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Ping() = %v, want nil", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("Ping() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
