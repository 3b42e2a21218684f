// Package httpkit builds the HTTP clients for every outbound call the
// concierge makes: LLM providers, the WhatsApp bridge, Mercado Pago and
// GitHub. Clients have explicit dial, TLS and overall timeouts so a
// stalled dependency cannot hold a guest's turn open, and they never
// retry: a failed call ends the turn through the caller's fallback.
//
// Every request carries the concierge User-Agent and, when the context
// has one, the turn's request id as X-Request-Id so a turn can be
// followed into the bridge and payment logs.
package httpkit

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenourinhas/concierge/internal/buildinfo"
)

// Transport defaults.
const (
	DefaultDialTimeout         = 10 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
	DefaultResponseHeader      = 15 * time.Second
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultMaxIdleConnsPerHost = 4

	// DefaultTimeout is the overall request timeout when none is given.
	DefaultTimeout = 30 * time.Second
)

// RequestIDHeader carries the turn's request id on outbound calls.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// WithRequestID returns a context whose outbound requests carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by [WithRequestID], or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ClientOption configures a client built by [NewClient].
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout   time.Duration
	userAgent string
	transport *http.Transport
}

// WithTimeout sets the overall request timeout. Zero disables it; the
// caller must then bound each request with a context deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithUserAgent overrides the concierge User-Agent.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithTransport replaces the default transport.
func WithTransport(t *http.Transport) ClientOption {
	return func(c *clientConfig) { c.transport = t }
}

// NewTransport creates a transport with the package defaults.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeader,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		ForceAttemptHTTP2:     true,
	}
}

// NewClient builds an *http.Client with the package defaults.
func NewClient(opts ...ClientOption) *http.Client {
	cfg := &clientConfig{
		timeout:   DefaultTimeout,
		userAgent: buildinfo.UserAgent(),
	}
	for _, o := range opts {
		o(cfg)
	}

	t := cfg.transport
	if t == nil {
		t = NewTransport()
	}

	return &http.Client{
		Timeout:   cfg.timeout,
		Transport: &stampTransport{base: t, ua: cfg.userAgent},
	}
}

// stampTransport sets the User-Agent and request id headers when the
// request does not already have them.
type stampTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *stampTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := RequestID(req.Context())
	needUA := req.Header.Get("User-Agent") == ""
	needID := id != "" && req.Header.Get(RequestIDHeader) == ""
	if needUA || needID {
		// Clone per the RoundTripper contract.
		req = req.Clone(req.Context())
		if needUA {
			req.Header.Set("User-Agent", t.ua)
		}
		if needID {
			req.Header.Set(RequestIDHeader, id)
		}
	}
	return t.base.RoundTrip(req)
}

// DrainAndClose reads up to limit bytes from rc and closes it so the
// connection is returned to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody reads up to limit bytes of an error response for logs
// and error messages, then drains and closes rc. Surrounding whitespace
// is trimmed.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	DrainAndClose(rc, 1024)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return strings.TrimSpace(string(body))
}
