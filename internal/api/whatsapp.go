package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cenourinhas/concierge/internal/agent"
)

// MessageRequest is the body the WhatsApp bridge posts for each
// inbound message.
type MessageRequest struct {
	JID     string `json:"jid"`
	Message string `json:"message"`
}

// MessageResponse carries the reply that was (or should have been)
// delivered.
type MessageResponse struct {
	Reply string `json:"reply"`
}

// handleWhatsAppMessage runs one turn.
// POST /api/whatsapp/message {"jid": "...", "message": "..."}
func (s *Server) handleWhatsAppMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBody)

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.handler.HandleMessage(r.Context(), req.JID, req.Message)
	if errors.Is(err, agent.ErrBadRequest) {
		s.errorResponse(w, http.StatusBadRequest, "jid and message are required")
		return
	}
	if err != nil {
		s.logger.Error("turn failed", "jid", req.JID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, MessageResponse{Reply: res.Reply}, s.logger)
}
