package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/cenourinhas/concierge/internal/gifts"
	"github.com/cenourinhas/concierge/internal/health"
	"github.com/cenourinhas/concierge/internal/usage"
)

// UsageResponse is the body of GET /v1/usage.
type UsageResponse struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
	usage.Report
}

// handleUsage reports token usage for the last ?hours=N (default 24).
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "usage ledger not configured")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.errorResponse(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	until := time.Now().UTC()
	since := until.Add(-time.Duration(hours) * time.Hour)

	rep, err := s.usage.Report(r.Context(), since, until)
	if err != nil {
		s.logger.Error("usage report failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, UsageResponse{Since: since, Until: until, Report: *rep}, s.logger)
}

// handlePaymentQR renders the checkout link of a payment as a PNG QR
// code, for guests opening the link on another device.
func (s *Server) handlePaymentQR(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}

	p, err := s.payments.Payment(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, gifts.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "payment not found")
		return
	}
	if err != nil {
		s.logger.Error("payment lookup failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p.CheckoutURL == "" {
		s.errorResponse(w, http.StatusNotFound, "payment has no checkout link")
		return
	}

	png, err := qrcode.Encode(p.CheckoutURL, qrcode.Medium, 256)
	if err != nil {
		s.logger.Error("qr encode failed", "payment_id", p.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write QR response", "error", err)
	}
}

// handleGuestSummary reports attendance totals.
func (s *Server) handleGuestSummary(w http.ResponseWriter, r *http.Request) {
	if s.guests == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "guest list not configured")
		return
	}

	sum, err := s.guests.Summarize(r.Context())
	if err != nil {
		s.logger.Error("guest summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sum, s.logger)
}

// ServicesResponse lists upstream reachability.
type ServicesResponse struct {
	Ready    bool                     `json:"ready"`
	Services map[string]health.Status `json:"services"`
}

// handleServices answers 200 when every watched service is reachable
// and 503 otherwise, so it can back a readiness probe.
func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	if s.services == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "service monitor not configured")
		return
	}

	resp := ServicesResponse{Ready: true, Services: s.services.Status()}
	for _, st := range resp.Services {
		if !st.Ready {
			resp.Ready = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, resp, s.logger)
}
