// ABOUTME: Auth handlers implementing the BFF sign-in flow with Google Identity Services
// ABOUTME: Decodes the GIS credential, enforces the domain allow-list, and manages session cookies

package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gems-agent/backend/config"
	"github.com/gems-agent/backend/middleware"
	"github.com/gems-agent/backend/models"
	"github.com/gems-agent/backend/services"
)

// SignIn exchanges a Google Identity Services credential for a server-side
// session. A rejected credential leaves any existing session untouched: the
// handler only touches cookies on success.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Credential == "" {
		h.writeError(w, "Credential is required", http.StatusBadRequest)
		return
	}

	claims, err := services.DecodeCredential(req.Credential, h.cfg.GoogleClientID)
	if err != nil {
		slog.Warn("Sign-in rejected: credential decode failed", "error", err)
		h.writeJSON(w, http.StatusUnauthorized, models.SignInResponse{
			Success: false,
			Error:   "Invalid credential",
		})
		return
	}

	// Strict mode: verify the token signature against Google's JWKS
	if h.cfg.VerifySignatures && h.certs != nil {
		if err := h.certs.Verify(req.Credential); err != nil {
			slog.Warn("Sign-in rejected: signature verification failed", "error", err)
			h.writeJSON(w, http.StatusUnauthorized, models.SignInResponse{
				Success: false,
				Error:   "Invalid credential",
			})
			return
		}
	}

	if err := services.CheckDomain(claims.Email, h.cfg.AllowedEmailDomain); err != nil {
		slog.Warn("Sign-in rejected: email outside allowed domain", "email", claims.Email)
		h.writeJSON(w, http.StatusForbidden, models.SignInResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	sessionID, err := h.sessionService.Create(claims)
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		h.writeError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	csrfToken, err := generateCSRFToken()
	if err != nil {
		slog.Error("Failed to generate CSRF token", "error", err)
		h.sessionService.Delete(sessionID)
		h.writeError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, sessionID)
	h.setCSRFCookie(w, csrfToken)

	slog.Info("User signed in", "email", claims.Email)

	h.writeJSON(w, http.StatusOK, models.SignInResponse{
		Success: true,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	})
}

// Me returns the current user's authentication status.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session := h.getSessionFromCookie(r)
	if session == nil {
		h.writeJSON(w, http.StatusOK, models.UserInfoResponse{
			Authenticated: false,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, models.UserInfoResponse{
		Authenticated: true,
		Email:         session.Email,
		Name:          session.Name,
		Picture:       session.Picture,
	})
}

// SignOut clears the session, its conversation state, and both cookies.
// It succeeds unconditionally: a missing or expired session still gets its
// cookies cleared and a 200 back.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if h.sessionService != nil {
			h.sessionService.Delete(cookie.Value)
		}
		h.conversations.Reset(cookie.Value)
	}

	h.clearSessionCookie(w)
	h.clearCSRFCookie(w)

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// getSessionFromCookie retrieves the session from the request cookie.
func (h *Handler) getSessionFromCookie(r *http.Request) *models.Session {
	if h.sessionService == nil {
		return nil
	}

	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return nil
	}

	session, err := h.sessionService.Get(cookie.Value)
	if err != nil {
		return nil
	}

	return session
}

// generateCSRFToken produces a 44-character base64url token from 32 random bytes.
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// setSessionCookie sets the httpOnly session cookie.
func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		HttpOnly: true,
		Secure:   h.cookieSecure(),
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   h.cfg.SessionTTL,
	})
}

// setCSRFCookie sets the CSRF cookie. Not httpOnly: the frontend reads it
// and mirrors it into the X-CSRF-Token header.
func (h *Handler) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookieName,
		Value:    token,
		HttpOnly: false,
		Secure:   h.cookieSecure(),
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   h.cfg.SessionTTL,
	})
}

// clearSessionCookie removes the session cookie.
func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   h.cookieSecure(),
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// clearCSRFCookie removes the CSRF cookie.
func (h *Handler) clearCSRFCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookieName,
		Value:    "",
		HttpOnly: false,
		Secure:   h.cookieSecure(),
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func (h *Handler) cookieSecure() bool {
	if h.cfg == nil {
		return true
	}
	return h.cfg.CookieSecure
}

func sessionTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.SessionTTL) * time.Second
}
