package opsalert

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/cenourinhas/concierge/internal/config"
)

// publisher is the subset of *autopaho.ConnectionManager used here.
type publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// MQTTNotifier publishes alerts as JSON to an MQTT topic. Alerts raised
// while the broker is unreachable are logged and dropped.
type MQTTNotifier struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
	pub    publisher
}

// NewMQTTNotifier creates a notifier but does not connect. Call
// [MQTTNotifier.Start] to open the connection.
func NewMQTTNotifier(cfg config.MQTTConfig, logger *slog.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		cfg:    cfg,
		logger: logger.With("component", "opsalert", "broker", cfg.Broker),
	}
}

// Start connects to the broker. It waits up to 10 seconds for the first
// connection; after that autopaho keeps retrying in the background and
// Start returns nil.
func (n *MQTTNotifier) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(n.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := n.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: n.cfg.Username,
		ConnectPassword: []byte(n.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			n.logger.Info("mqtt connected to broker")
			n.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			n.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: n.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	n.cm = cm
	n.pub = cm

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		n.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes "offline" and disconnects.
func (n *MQTTNotifier) Stop(ctx context.Context) error {
	if n.cm == nil {
		return nil
	}
	n.publishAvailability(ctx, n.cm, "offline")
	return n.cm.Disconnect(ctx)
}

// Notify publishes a as JSON with QoS 1.
func (n *MQTTNotifier) Notify(ctx context.Context, a Alert) {
	if a.Time.IsZero() {
		a.Time = time.Now().UTC()
	}
	if n.pub == nil {
		n.logger.Warn("mqtt alert dropped, not connected", "kind", a.Kind, "detail", a.Detail)
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		n.logger.Error("mqtt marshal alert", "kind", a.Kind, "error", err)
		return
	}

	if _, err := n.pub.Publish(ctx, &paho.Publish{
		Topic:   n.cfg.Topic,
		Payload: payload,
		QoS:     1,
	}); err != nil {
		n.logger.Warn("mqtt alert publish failed", "kind", a.Kind, "topic", n.cfg.Topic, "error", err)
		return
	}
	n.logger.Debug("mqtt alert published", "kind", a.Kind, "topic", n.cfg.Topic)
}

func (n *MQTTNotifier) availabilityTopic() string {
	return n.cfg.Topic + "/availability"
}

func (n *MQTTNotifier) publishAvailability(ctx context.Context, pub publisher, status string) {
	if _, err := pub.Publish(ctx, &paho.Publish{
		Topic:   n.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		n.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
	} else {
		n.logger.Info("mqtt availability published", "status", status)
	}
}
