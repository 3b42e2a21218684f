package opsalert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/eclipse/paho.golang/paho"

	"github.com/cenourinhas/concierge/internal/config"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*paho.Publish
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, p *paho.Publish) (*paho.PublishResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, p)
	return &paho.PublishResponse{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMQTTNotifier_PublishesJSON(t *testing.T) {
	fake := &fakePublisher{}
	n := NewMQTTNotifier(config.MQTTConfig{Broker: "mqtt://localhost:1883", Topic: "concierge/alerts"}, discardLogger())
	n.pub = fake

	n.Notify(context.Background(), Alert{
		Kind:           KindDeliveryFailure,
		ConversationID: "5531999999999@s.whatsapp.net",
		Detail:         "bridge returned 502",
	})

	if len(fake.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(fake.msgs))
	}
	msg := fake.msgs[0]
	if msg.Topic != "concierge/alerts" {
		t.Errorf("topic = %q", msg.Topic)
	}
	if msg.QoS != 1 || msg.Retain {
		t.Errorf("QoS = %d retain = %v, want 1 false", msg.QoS, msg.Retain)
	}

	var got Alert
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Kind != KindDeliveryFailure || got.ConversationID != "5531999999999@s.whatsapp.net" {
		t.Errorf("payload = %+v", got)
	}
	if got.Time.IsZero() {
		t.Error("alert time should be stamped")
	}
}

func TestMQTTNotifier_NotConnected(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := NewMQTTNotifier(config.MQTTConfig{Broker: "mqtt://localhost:1883", Topic: "t"}, logger)

	n.Notify(context.Background(), Alert{Kind: KindProviderFailure, Detail: "timeout"})

	if !strings.Contains(buf.String(), "mqtt alert dropped") {
		t.Errorf("expected drop warning, got %q", buf.String())
	}
}

func TestMQTTNotifier_PublishErrorIsSwallowed(t *testing.T) {
	fake := &fakePublisher{err: errors.New("connection lost")}
	n := NewMQTTNotifier(config.MQTTConfig{Broker: "mqtt://localhost:1883", Topic: "t"}, discardLogger())
	n.pub = fake

	n.Notify(context.Background(), Alert{Kind: KindProviderFailure})
}

func TestMQTTNotifier_StopWithoutStart(t *testing.T) {
	n := NewMQTTNotifier(config.MQTTConfig{Broker: "mqtt://localhost:1883"}, discardLogger())
	if err := n.Stop(context.Background()); err != nil {
		t.Errorf("Stop() = %v, want nil", err)
	}
}

func TestMQTTNotifier_StartBadURL(t *testing.T) {
	n := NewMQTTNotifier(config.MQTTConfig{Broker: "://bad"}, discardLogger())
	if err := n.Start(context.Background()); err == nil {
		t.Error("expected error for malformed broker URL")
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	n.Notify(context.Background(), Alert{Kind: KindProviderFailure, RequestID: "r_1234abcd", Detail: "ollama down"})

	out := buf.String()
	for _, want := range []string{"level=ERROR", "kind=provider_failure", "request_id=r_1234abcd"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify(context.Context, Alert) { c.n++ }

func TestMulti(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	Multi{a, b}.Notify(context.Background(), Alert{Kind: KindDeliveryFailure})
	if a.n != 1 || b.n != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", a.n, b.n)
	}
}
