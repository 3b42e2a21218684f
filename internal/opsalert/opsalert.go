// Package opsalert tells the operator when a guest got a degraded
// experience: the model could not be reached or a reply could not be
// delivered.
package opsalert

import (
	"context"
	"log/slog"
	"time"
)

// Alert kinds.
const (
	KindProviderFailure = "provider_failure"
	KindDeliveryFailure = "delivery_failure"
	KindServiceDown     = "service_down"
)

// Alert is a single operator notification.
type Alert struct {
	Kind           string    `json:"kind"`
	Service        string    `json:"service,omitempty"`
	ConversationID string    `json:"jid,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Detail         string    `json:"detail"`
	Time           time.Time `json:"time"`
}

// Notifier delivers operator alerts. Notify is best effort and never
// blocks a turn for longer than the caller's context allows.
type Notifier interface {
	Notify(ctx context.Context, a Alert)
}

// LogNotifier writes alerts to the process log. It is the notifier used
// when no MQTT broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs at error level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "opsalert")}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(_ context.Context, a Alert) {
	n.logger.Error("operator alert",
		"kind", a.Kind,
		"service", a.Service,
		"jid", a.ConversationID,
		"request_id", a.RequestID,
		"detail", a.Detail,
	)
}

// Multi fans an alert out to several notifiers.
type Multi []Notifier

// Notify forwards a to every notifier in order.
func (m Multi) Notify(ctx context.Context, a Alert) {
	for _, n := range m {
		n.Notify(ctx, a)
	}
}
