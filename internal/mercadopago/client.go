// Package mercadopago creates Checkout Pro payment links for gifts
// through the Mercado Pago Go SDK.
package mercadopago

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/preference"

	"github.com/cenourinhas/concierge/internal/httpkit"
)

const (
	defaultAPIURL   = "https://api.mercadopago.com"
	defaultCurrency = "BRL"
	requestTimeout  = 20 * time.Second
)

// Config holds the client settings.
type Config struct {
	AccessToken string
	// APIURL replaces the SDK's API host, for sandboxes and tests.
	APIURL string
	// SiteURL is the public site used for back_urls and the webhook.
	SiteURL  string
	Currency string
}

// Client creates checkout preferences.
type Client struct {
	cfg         Config
	preferences preference.Client
	logger      *slog.Logger
}

// NewClient creates a Mercado Pago client. Without an access token the
// client is built but every checkout fails.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	c := &Client{cfg: cfg, logger: logger.With("component", "mercadopago")}
	if cfg.AccessToken == "" {
		return c
	}

	hc := httpkit.NewClient(httpkit.WithTimeout(requestTimeout))
	if cfg.APIURL != defaultAPIURL {
		target, err := url.Parse(cfg.APIURL)
		if err != nil || target.Host == "" {
			c.logger.Error("invalid mercado pago api_url", "api_url", cfg.APIURL)
			return c
		}
		hc.Transport = &rebaseTransport{base: hc.Transport, target: target}
	}
	sdkCfg, err := config.New(cfg.AccessToken, config.WithHTTPClient(hc))
	if err != nil {
		c.logger.Error("mercado pago sdk config rejected", "error", err)
		return c
	}
	c.preferences = preference.NewClient(sdkCfg)
	return c
}

// GiftPreference builds the preference for paying one gift. The
// payment id is sent as the external reference so the webhook can
// reconcile it.
func (c *Client) GiftPreference(paymentID, title string, amountCents int64) preference.Request {
	return preference.Request{
		Items: []preference.ItemRequest{{
			Title:      title,
			Quantity:   1,
			CurrencyID: c.cfg.Currency,
			UnitPrice:  float64(amountCents) / 100,
		}},
		ExternalReference: paymentID,
		BackURLs: &preference.BackURLsRequest{
			Success: c.cfg.SiteURL + "/pagamento/sucesso/",
			Failure: c.cfg.SiteURL + "/pagamento/erro/",
			Pending: c.cfg.SiteURL + "/pagamento/pendente/",
		},
		NotificationURL: c.cfg.SiteURL + "/webhook/mercadopago/",
	}
}

// CheckoutLink creates a preference for one gift payment and returns
// its checkout URL.
func (c *Client) CheckoutLink(ctx context.Context, paymentID, title string, amountCents int64) (string, error) {
	if c.preferences == nil {
		return "", fmt.Errorf("mercado pago access token not configured")
	}

	pref, err := c.preferences.Create(ctx, c.GiftPreference(paymentID, title, amountCents))
	if err != nil {
		c.logger.Warn("preference rejected", "payment_id", paymentID, "error", err)
		return "", fmt.Errorf("create preference: %w", err)
	}
	if pref.InitPoint == "" {
		return "", fmt.Errorf("preference %s has no init_point", pref.ID)
	}

	c.logger.Debug("preference created", "preference_id", pref.ID, "payment_id", paymentID)
	return pref.InitPoint, nil
}

// rebaseTransport sends the SDK's requests to another scheme and host,
// keeping path and query.
type rebaseTransport struct {
	base   http.RoundTripper
	target *url.URL
}

func (t *rebaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	r.URL.Path = strings.TrimRight(t.target.Path, "/") + req.URL.Path
	r.Host = t.target.Host
	return t.base.RoundTrip(r)
}
