package mercadopago

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestGiftPreference(t *testing.T) {
	c := NewClient(Config{SiteURL: "https://www.cenourinhas.com.br/"}, nil)
	p := c.GiftPreference("0190-abc", "Cafeteira", 15050)

	if len(p.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(p.Items))
	}
	item := p.Items[0]
	if item.Title != "Cafeteira" || item.Quantity != 1 || item.CurrencyID != "BRL" || item.UnitPrice != 150.5 {
		t.Errorf("item = %+v", item)
	}
	if p.ExternalReference != "0190-abc" {
		t.Errorf("external_reference = %q", p.ExternalReference)
	}
	if p.BackURLs == nil ||
		p.BackURLs.Success != "https://www.cenourinhas.com.br/pagamento/sucesso/" ||
		p.BackURLs.Failure != "https://www.cenourinhas.com.br/pagamento/erro/" ||
		p.BackURLs.Pending != "https://www.cenourinhas.com.br/pagamento/pendente/" {
		t.Errorf("back_urls = %+v", p.BackURLs)
	}
	if p.NotificationURL != "https://www.cenourinhas.com.br/webhook/mercadopago/" {
		t.Errorf("notification_url = %q", p.NotificationURL)
	}
}

func TestCheckoutLink(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer TEST-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"pref-1","init_point":"https://www.mercadopago.com.br/checkout/v1/redirect?pref_id=pref-1"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{AccessToken: "TEST-token", APIURL: srv.URL, SiteURL: "https://site"}, nil)
	link, err := c.CheckoutLink(t.Context(), "pay-1", "Cafeteira", 15000)
	if err != nil {
		t.Fatalf("CheckoutLink: %v", err)
	}
	if !strings.Contains(link, "pref_id=pref-1") {
		t.Errorf("link = %q", link)
	}
	if got["external_reference"] != "pay-1" {
		t.Errorf("external_reference sent = %v", got["external_reference"])
	}
	items, _ := got["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items sent = %v", got["items"])
	}
	if items[0].(map[string]any)["unit_price"] != 150.0 {
		t.Errorf("unit_price sent = %v", items[0])
	}
}

func TestCheckoutLink_Errors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		status  int
		body    string
		wantSub string
	}{
		{"no token", "", 0, "", "not configured"},
		{"api error", "tok", http.StatusBadRequest, `{"message":"invalid unit_price","status":400}`, "create preference"},
		{"missing init_point", "tok", http.StatusCreated, `{"id":"pref-2"}`, "no init_point"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{AccessToken: tt.token, APIURL: srv.URL}, nil)
			_, err := c.CheckoutLink(t.Context(), "pay", "Item", 100)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
			if n := calls.Load(); n > 1 {
				t.Errorf("provider called %d times, want no retry", n)
			}
		})
	}
}

func TestRebaseTransport(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path + "?" + r.URL.RawQuery
	}))
	defer srv.Close()

	c := NewClient(Config{AccessToken: "tok", APIURL: srv.URL + "/sandbox/"}, nil)
	if c.preferences == nil {
		t.Fatal("client not configured")
	}

	hc := &http.Client{Transport: &rebaseTransport{base: http.DefaultTransport, target: mustParse(t, srv.URL+"/sandbox")}}
	resp, err := hc.Get("https://api.mercadopago.com/checkout/preferences?x=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if path != "/sandbox/checkout/preferences?x=1" {
		t.Errorf("path = %q", path)
	}
}
