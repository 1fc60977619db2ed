// ABOUTME: Health check endpoint
// ABOUTME: Reports service status and Vertex AI configuration state

package handlers

import "net/http"

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"vertex_ai": "not_configured",
	}

	if h.cfg != nil && h.cfg.VertexConfigured() && h.responder != nil {
		resp["vertex_ai"] = "ok"
	}

	h.writeJSON(w, http.StatusOK, resp)
}
