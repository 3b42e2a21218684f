package opsalert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenourinhas/concierge/internal/config"
)

// githubRecorder captures issue API calls made by the notifier.
type githubRecorder struct {
	mu       sync.Mutex
	open     []map[string]any
	created  []map[string]any
	comments map[string][]string
}

func (g *githubRecorder) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/hugo/cenourinhas/issues", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("labels"); got != "concierge-alert" {
			t.Errorf("labels filter = %q, want concierge-alert", got)
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(g.open)
	})
	mux.HandleFunc("POST /api/v3/repos/hugo/cenourinhas/issues", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		g.mu.Lock()
		g.created = append(g.created, req)
		g.open = append(g.open, map[string]any{"number": 7, "title": req["title"], "state": "open"})
		g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"number": 7, "title": req["title"]})
	})
	mux.HandleFunc("POST /api/v3/repos/hugo/cenourinhas/issues/{number}/comments", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		g.mu.Lock()
		if g.comments == nil {
			g.comments = make(map[string][]string)
		}
		num := r.PathValue("number")
		g.comments[num] = append(g.comments[num], req["body"].(string))
		g.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 1})
	})
	return mux
}

// newTestGitHubNotifier creates a notifier backed by the recorder. The
// test server is closed automatically when the test finishes.
func newTestGitHubNotifier(t *testing.T, rec *githubRecorder) *GitHubNotifier {
	t.Helper()
	ts := httptest.NewServer(rec.handler(t))
	t.Cleanup(ts.Close)

	n, err := NewGitHubNotifier(config.GitHubConfig{
		Token: "test-token",
		Repo:  "hugo/cenourinhas",
		URL:   ts.URL,
		Label: "concierge-alert",
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewGitHubNotifier: %v", err)
	}
	return n
}

func TestGitHubNotifier_OpensThenComments(t *testing.T) {
	rec := &githubRecorder{}
	n := newTestGitHubNotifier(t, rec)
	ctx := t.Context()

	alert := Alert{
		Kind:           KindServiceDown,
		Service:        "llm",
		ConversationID: "5531999999999@s.whatsapp.net",
		RequestID:      "r_0a1b2c3d",
		Detail:         "llm: connection refused",
		Time:           time.Date(2026, 10, 11, 14, 0, 0, 0, time.UTC),
	}
	if err := n.file(ctx, alert); err != nil {
		t.Fatalf("first file: %v", err)
	}
	if err := n.file(ctx, alert); err != nil {
		t.Fatalf("second file: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.created) != 1 {
		t.Fatalf("created %d issues, want 1", len(rec.created))
	}
	issue := rec.created[0]
	if issue["title"] != "[concierge] service_down: llm" {
		t.Errorf("title = %v", issue["title"])
	}
	body, _ := issue["body"].(string)
	if !strings.Contains(body, "r_0a1b2c3d") || !strings.Contains(body, "connection refused") {
		t.Errorf("body missing request id or detail:\n%s", body)
	}
	if strings.Contains(body, "5531999999999") {
		t.Error("issue body leaks the guest's phone number")
	}
	if labels, _ := issue["labels"].([]any); len(labels) != 1 || labels[0] != "concierge-alert" {
		t.Errorf("labels = %v", issue["labels"])
	}
	if got := len(rec.comments["7"]); got != 1 {
		t.Errorf("comments on #7 = %d, want 1", got)
	}
}

func TestGitHubNotifier_RunDrainsQueue(t *testing.T) {
	rec := &githubRecorder{}
	n := newTestGitHubNotifier(t, rec)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	n.Notify(ctx, Alert{Kind: KindProviderFailure, Detail: "timeout", Time: time.Now()})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec.mu.Lock()
		created := len(rec.created)
		rec.mu.Unlock()
		if created == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.created) != 1 {
		t.Fatalf("created %d issues, want 1", len(rec.created))
	}
	if rec.created[0]["title"] != "[concierge] provider_failure" {
		t.Errorf("title = %v", rec.created[0]["title"])
	}
}

func TestGitHubNotifier_QueueFullDrops(t *testing.T) {
	n, err := NewGitHubNotifier(config.GitHubConfig{Token: "t", Repo: "hugo/cenourinhas"}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	for range githubQueueSize + 5 {
		n.Notify(t.Context(), Alert{Kind: KindDeliveryFailure})
	}
	if got := len(n.queue); got != githubQueueSize {
		t.Errorf("queue length = %d, want %d", got, githubQueueSize)
	}
}

func TestNewGitHubNotifier_InvalidRepo(t *testing.T) {
	for _, repo := range []string{"", "cenourinhas", "/repo", "owner/"} {
		if _, err := NewGitHubNotifier(config.GitHubConfig{Token: "t", Repo: repo}, discardLogger()); err == nil {
			t.Errorf("repo %q: expected error", repo)
		}
	}
}

func TestNewGitHubNotifier_NilLogger(t *testing.T) {
	n, err := NewGitHubNotifier(config.GitHubConfig{Token: "t", Repo: "hugo/cenourinhas"}, nil)
	if err != nil {
		t.Fatalf("NewGitHubNotifier: %v", err)
	}
	if n.logger == nil {
		t.Fatal("logger not set")
	}
	n.Notify(t.Context(), Alert{Kind: KindServiceDown, Service: "llm"})
}
