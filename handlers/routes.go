// ABOUTME: Declarative route table for API endpoints
// ABOUTME: Defines all routes with their methods, auth, and rate limit class

package handlers

import "net/http"

// Rate limit classes. Each class gets its own limiter so a burst of chat
// requests cannot starve sign-in and vice versa.
const (
	LimitAuth    = "auth"
	LimitChat    = "chat"
	LimitDefault = "default"
)

// Route defines an API endpoint with its HTTP method and handler.
type Route struct {
	Method    string           // HTTP method (GET, POST, etc.)
	Path      string           // URL path (e.g., "/api/v1/health")
	Handler   http.HandlerFunc // Handler function
	Protected bool             // Requires a valid session cookie
	Limit     string           // Rate limit class (LimitAuth, LimitChat, LimitDefault)
}

// Routes returns all API routes for registration.
func (h *Handler) Routes() []Route {
	return []Route{
		// Health
		{Method: http.MethodGet, Path: "/api/v1/health", Handler: h.Health, Limit: LimitDefault},

		// Authentication
		{Method: http.MethodPost, Path: "/api/v1/auth/signin", Handler: h.SignIn, Limit: LimitAuth},
		{Method: http.MethodGet, Path: "/api/v1/auth/me", Handler: h.Me, Limit: LimitDefault},
		{Method: http.MethodPost, Path: "/api/v1/auth/signout", Handler: h.SignOut, Limit: LimitAuth},

		// Chat
		{Method: http.MethodPost, Path: "/api/v1/chat", Handler: h.Chat, Protected: true, Limit: LimitChat},
		{Method: http.MethodGet, Path: "/api/v1/chat/history", Handler: h.History, Protected: true, Limit: LimitDefault},
	}
}
