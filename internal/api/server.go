// Package api implements the concierge HTTP API: the inbound WhatsApp
// webhook plus a few operator endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cenourinhas/concierge/internal/agent"
	"github.com/cenourinhas/concierge/internal/buildinfo"
	"github.com/cenourinhas/concierge/internal/gifts"
	"github.com/cenourinhas/concierge/internal/guests"
	"github.com/cenourinhas/concierge/internal/health"
	"github.com/cenourinhas/concierge/internal/usage"
)

// maxMessageBody bounds the inbound webhook body.
const maxMessageBody = 64 << 10

// MessageHandler runs a conversational turn.
type MessageHandler interface {
	HandleMessage(ctx context.Context, jid, text string) (*agent.TurnResult, error)
}

// UsageReporter aggregates the token ledger.
type UsageReporter interface {
	Report(ctx context.Context, start, end time.Time) (*usage.Report, error)
}

// PaymentLookup finds a gift payment by id.
type PaymentLookup interface {
	Payment(ctx context.Context, id string) (*gifts.Payment, error)
}

// GuestSummarizer counts guests by attendance.
type GuestSummarizer interface {
	Summarize(ctx context.Context) (guests.Summary, error)
}

// ServiceMonitor reports the reachability of upstream services.
type ServiceMonitor interface {
	Status() map[string]health.Status
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	handler  MessageHandler
	usage    UsageReporter
	payments PaymentLookup
	guests   GuestSummarizer
	services ServiceMonitor
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, handler MessageHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		handler: handler,
		logger:  logger.With("component", "api"),
	}
}

// SetUsageReporter enables GET /v1/usage.
func (s *Server) SetUsageReporter(u UsageReporter) {
	s.usage = u
}

// SetPaymentLookup enables GET /v1/payments/{id}/qr.
func (s *Server) SetPaymentLookup(p PaymentLookup) {
	s.payments = p
}

// SetGuestSummarizer enables GET /v1/guests/summary.
func (s *Server) SetGuestSummarizer(g GuestSummarizer) {
	s.guests = g
}

// SetServiceMonitor enables GET /v1/services.
func (s *Server) SetServiceMonitor(m ServiceMonitor) {
	s.services = m
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogging)
	r.Use(s.recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Post("/api/whatsapp/message", s.handleWhatsAppMessage)
	// Path the bridge was first deployed with.
	r.Post("/api/whatsapp/gemini", s.handleWhatsAppMessage)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/usage", s.handleUsage)
		r.Get("/payments/{id}/qr", s.handlePaymentQR)
		r.Get("/guests/summary", s.handleGuestSummary)
		r.Get("/services", s.handleServices)
	})

	return r
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed
// after Shutdown. Requests do not inherit the process context, so a
// shutdown lets in-flight turns finish within the Shutdown deadline.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A turn may make two LLM calls and a delivery.
		WriteTimeout: 5 * time.Minute,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// recoverer turns a panic into a logged 500 with a JSON body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error("handler panicked",
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"panic", p,
				)
				s.errorResponse(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"error": message}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Current(), s.logger)
}
