package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/cenourinhas/concierge/internal/guests"
	"github.com/cenourinhas/concierge/internal/httpkit"
	"github.com/cenourinhas/concierge/internal/llm"
	"github.com/cenourinhas/concierge/internal/memory"
	"github.com/cenourinhas/concierge/internal/opsalert"
	"github.com/cenourinhas/concierge/internal/tools"
	"github.com/cenourinhas/concierge/internal/usage"
)

// mockLLM returns canned responses in order and records every call.
// Once the responses run out, Chat fails.
type mockLLM struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	callIndex int
	calls     []mockLLMCall
}

type mockLLMCall struct {
	Model    string
	Messages []llm.Message
	Tools    []map[string]any
	Options  llm.Options
}

func (m *mockLLM) Chat(_ context.Context, model string, msgs []llm.Message, tools []map[string]any, opts llm.Options) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, mockLLMCall{Model: model, Messages: msgs, Tools: tools, Options: opts})
	if m.callIndex >= len(m.responses) {
		return nil, fmt.Errorf("mockLLM: no more responses (call %d)", m.callIndex)
	}
	resp := m.responses[m.callIndex]
	m.callIndex++
	return resp, nil
}

func (m *mockLLM) Ping(_ context.Context) error { return nil }

func textResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model:        "test-model",
		Message:      llm.Message{Role: "assistant", Content: content},
		InputTokens:  100,
		OutputTokens: 20,
	}
}

func toolResponse(name string, args map[string]any) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "test-model",
		Message: llm.Message{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       "call-1",
				Function: llm.FunctionCall{Name: name, Arguments: args},
			}},
		},
		InputTokens:  120,
		OutputTokens: 15,
	}
}

type delivery struct {
	RequestID string
	JID       string
	Text      string
}

type fakeDeliverer struct {
	mu   sync.Mutex
	sent []delivery
	fail bool
}

// Deliver fails on a done context, like an HTTP request would.
func (f *fakeDeliverer) Deliver(ctx context.Context, jid, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	f.sent = append(f.sent, delivery{RequestID: httpkit.RequestID(ctx), JID: jid, Text: text})
	return !f.fail
}

// cancellingLLM cancels the turn's context mid-call, as a client
// disconnect or a shutdown would.
type cancellingLLM struct {
	cancel context.CancelFunc
}

func (c *cancellingLLM) Chat(ctx context.Context, _ string, _ []llm.Message, _ []map[string]any, _ llm.Options) (*llm.ChatResponse, error) {
	c.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *cancellingLLM) Ping(context.Context) error { return nil }

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []opsalert.Alert
}

func (f *fakeNotifier) Notify(_ context.Context, a opsalert.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

type fakeUsage struct {
	records []usage.Record
}

func (f *fakeUsage) Record(_ context.Context, rec usage.Record) error {
	f.records = append(f.records, rec)
	return nil
}

// brokenStore fails every load and save.
type brokenStore struct{}

func (brokenStore) Load(context.Context, string) ([]string, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Save(context.Context, string, []string) error {
	return errors.New("disk on fire")
}

type testHarness struct {
	loop     *Loop
	llm      *mockLLM
	store    *memory.Store
	guests   *guests.Store
	registry *tools.Registry
	delivery *fakeDeliverer
	alerts   *fakeNotifier
	usage    *fakeUsage
}

const testReportURL = "https://github.com/hugodavilat/cenourinhas/issues"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness wires a loop with real guest tools on an in-memory
// database and fakes at every outbound edge.
func newHarness(t *testing.T, window int, responses ...*llm.ChatResponse) *testHarness {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	gs, err := guests.NewStore(db, quietLogger())
	if err != nil {
		t.Fatalf("guests store: %v", err)
	}

	reg := tools.NewRegistry(quietLogger())
	if err := reg.RegisterGuestTools(gs); err != nil {
		t.Fatalf("RegisterGuestTools: %v", err)
	}

	h := &testHarness{
		llm:      &mockLLM{responses: responses},
		store:    memory.NewStore(),
		guests:   gs,
		registry: reg,
		delivery: &fakeDeliverer{},
		alerts:   &fakeNotifier{},
		usage:    &fakeUsage{},
	}

	call := CallConfig{Model: "test-model", Options: llm.Options{Temperature: llm.Temperature(0.4), TopP: 0.95, TopK: 20}}
	gw := NewGateway(h.llm, reg, "", call, quietLogger())
	synth := NewSynthesizer(h.llm, call, quietLogger())

	h.loop = NewLoop(quietLogger(), gw, synth, reg, h.store, h.delivery, window)
	h.loop.SetNotifier(h.alerts)
	h.loop.SetUsageRecorder(h.usage)
	h.loop.SetReportURL(testReportURL)
	return h
}

func (h *testHarness) history(t *testing.T, jid string) []string {
	t.Helper()
	hist, err := h.store.Load(context.Background(), jid)
	if err != nil {
		t.Fatalf("Load(%q): %v", jid, err)
	}
	return hist
}
