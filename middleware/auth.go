// ABOUTME: Session-cookie authentication middleware
// ABOUTME: Resolves the session cookie to a verified identity or rejects with 401

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gems-agent/backend/models"
)

// SessionCookieName is the httpOnly cookie carrying the session ID.
const SessionCookieName = "GEMS_SESSION"

// SessionValidatorFunc resolves a session ID to a session, or nil when the
// ID is unknown or expired.
type SessionValidatorFunc func(sessionID string) *models.Session

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const sessionKey contextKey = "session"

// RequireSession returns middleware that rejects requests without a valid
// session cookie. The resolved session is placed on the request context for
// handlers to read via GetSession.
func RequireSession(validate SessionValidatorFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				slog.Debug("Auth rejected: no session cookie", "path", r.URL.Path)
				writeJSONError(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			session := validate(cookie.Value)
			if session == nil {
				slog.Debug("Auth rejected: invalid session", "path", r.URL.Path)
				writeJSONError(w, "Invalid session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next(w, r.WithContext(ctx))
		}
	}
}

// GetSession extracts the session from the request context.
// Returns nil if the request is not session-authenticated.
func GetSession(r *http.Request) *models.Session {
	session, ok := r.Context().Value(sessionKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
