// ABOUTME: Chat endpoint handlers proxying user messages to the RAG responder
// ABOUTME: Enforces the single-in-flight rule and append-only history per session

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gems-agent/backend/middleware"
	"github.com/gems-agent/backend/models"
)

// chatUnavailableMessage is the only error text the user ever sees for a
// failed chat call. Upstream detail goes to the log, not the response.
const chatUnavailableMessage = "Could not get a response from the agent. Please try again."

// Chat accepts one user message and returns the agent's reply. At most one
// request per session is in flight at a time; a second POST while the first
// is outstanding gets a 409 without touching conversation state.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	if session == nil {
		h.writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.writeError(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	if h.responder == nil {
		h.writeError(w, "Agent backend not configured", http.StatusServiceUnavailable)
		return
	}

	if !h.conversations.Begin(session.ID) {
		h.writeError(w, "A request is already in progress", http.StatusConflict)
		return
	}
	// Released on every terminal path so a failed call never wedges the session.
	defer h.conversations.End(session.ID)

	// The user message enters history before the upstream call and stays
	// there even if the call fails.
	h.conversations.Append(session.ID, models.RoleUser, message)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.cfg.ChatTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	reply, err := h.responder.Reply(ctx, message)
	reply = strings.TrimSpace(reply)

	if err != nil || reply == "" {
		if err != nil {
			slog.Error("Chat upstream call failed", "email", session.Email, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		} else {
			slog.Error("Chat upstream returned empty reply", "email", session.Email, "elapsed_ms", time.Since(start).Milliseconds())
		}
		h.conversations.SetError(session.ID, chatUnavailableMessage)
		h.writeError(w, chatUnavailableMessage, http.StatusBadGateway)
		return
	}

	h.conversations.Append(session.ID, models.RoleAgent, reply)

	slog.Info("Chat reply delivered", "email", session.Email, "elapsed_ms", time.Since(start).Milliseconds())

	h.writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}

// History returns the session's ordered conversation.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	if session == nil {
		h.writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	h.writeJSON(w, http.StatusOK, models.HistoryResponse{
		Messages: h.conversations.History(session.ID),
	})
}
