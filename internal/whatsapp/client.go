// Package whatsapp delivers replies through the WhatsApp bridge.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenourinhas/concierge/internal/config"
	"github.com/cenourinhas/concierge/internal/httpkit"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 15 * time.Second

// Client posts outgoing messages to the bridge.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a bridge client. A zero timeout uses
// [DefaultTimeout].
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(timeout)),
		logger:     logger.With("component", "whatsapp"),
	}
}

type sendRequest struct {
	JID     string `json:"jid"`
	Message string `json:"message"`
}

// Deliver sends text to jid in a single attempt. Markdown is reduced to
// plain text first. It reports whether the bridge accepted the message;
// every failure is logged and reported as false.
func (c *Client) Deliver(ctx context.Context, jid, text string) bool {
	body, err := json.Marshal(sendRequest{JID: jid, Message: PlainText(text)})
	if err != nil {
		c.logger.Error("marshal delivery", "jid", jid, "error", err)
		return false
	}
	c.logger.Log(ctx, config.LevelTrace, "delivery payload", "jid", jid, "body", string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send_jid_message", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("create delivery request", "jid", jid, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("delivery failed", "jid", jid, "error", err)
		return false
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("delivery rejected",
			"jid", jid,
			"status", resp.StatusCode,
			"body", httpkit.ReadErrorBody(resp.Body, 512),
		)
		return false
	}

	c.logger.Debug("message delivered",
		"jid", jid,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return true
}

// Ping reports whether the bridge answers HTTP at all. Any status code
// counts as reachable; only transport errors fail.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	httpkit.DrainAndClose(resp.Body, 4096)
	return nil
}
