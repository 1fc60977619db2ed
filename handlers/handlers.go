// ABOUTME: HTTP handlers for the GEMS Agent API endpoints
// ABOUTME: Wires config, cache, sessions, conversations, and the RAG responder

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gems-agent/backend/cache"
	"github.com/gems-agent/backend/config"
	"github.com/gems-agent/backend/models"
	"github.com/gems-agent/backend/services"
)

type Handler struct {
	cfg            *config.Config
	cache          *cache.Cache
	sessionService *services.SessionService
	conversations  *services.ConversationStore
	responder      services.Responder
	certs          *services.CertsClient
}

// NewHandler creates the handler set. responder may be nil when Vertex AI is
// not configured; the chat endpoint then reports the agent as unavailable.
// certs may be nil unless strict signature verification is enabled.
func NewHandler(cfg *config.Config, c *cache.Cache, responder services.Responder, certs *services.CertsClient) *Handler {
	h := &Handler{
		cfg:           cfg,
		cache:         c,
		conversations: services.NewConversationStore(),
		responder:     responder,
		certs:         certs,
	}

	if cfg != nil {
		h.sessionService = services.NewSessionService(c, sessionTTL(cfg))
	}

	return h
}

// ValidateSession resolves a session ID for the auth middleware. Returns nil
// for unknown or expired sessions.
func (h *Handler) ValidateSession(sessionID string) *models.Session {
	if h.sessionService == nil {
		return nil
	}
	session, err := h.sessionService.Get(sessionID)
	if err != nil {
		return nil
	}
	return session
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	h.writeJSON(w, code, models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
