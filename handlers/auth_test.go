// ABOUTME: Tests for the sign-in, me, and sign-out handlers
// ABOUTME: Covers credential rejection, domain enforcement, and cookie lifecycle

package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gems-agent/backend/cache"
	"github.com/gems-agent/backend/config"
	"github.com/gems-agent/backend/middleware"
	"github.com/gems-agent/backend/models"
)

const testClientID = "123456789-abc.apps.googleusercontent.com"

func testConfig() *config.Config {
	return &config.Config{
		Port:               "8080",
		CookieSecure:       false,
		GoogleClientID:     testClientID,
		AllowedEmailDomain: "@example.com",
		SessionTTL:         3600,
		ChatTimeout:        5,
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(testConfig(), cache.New(5*time.Minute), nil, nil)
}

// makeCredential builds an unsigned JWT-shaped credential with the given
// claims. The signature part is garbage; decode mode never inspects it.
func makeCredential(t *testing.T, claims map[string]interface{}) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func claimsFor(email string) map[string]interface{} {
	return map[string]interface{}{
		"email":   email,
		"name":    "Kari Nordmann",
		"picture": "https://lh3.example.com/photo.jpg",
		"aud":     testClientID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func postSignIn(t *testing.T, h *Handler, credential string) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(models.SignInRequest{Credential: credential})
	req := httptest.NewRequest("POST", "/api/v1/auth/signin", strings.NewReader(string(body)))
	rr := httptest.NewRecorder()
	h.SignIn(rr, req)
	return rr
}

// sessionCookieFrom extracts a named cookie from a recorded response.
func cookieFrom(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignIn_Success(t *testing.T) {
	h := newTestHandler(t)
	rr := postSignIn(t, h, makeCredential(t, claimsFor("kari@example.com")))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.SignInResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Email != "kari@example.com" {
		t.Errorf("Email = %q, want kari@example.com", resp.Email)
	}

	sessionCookie := cookieFrom(rr, middleware.SessionCookieName)
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("Expected session cookie to be set")
	}
	if !sessionCookie.HttpOnly {
		t.Error("Session cookie must be httpOnly")
	}

	csrfCookie := cookieFrom(rr, middleware.CSRFCookieName)
	if csrfCookie == nil || csrfCookie.Value == "" {
		t.Fatal("Expected CSRF cookie to be set")
	}
	if csrfCookie.HttpOnly {
		t.Error("CSRF cookie must be readable by the frontend")
	}
	if len(csrfCookie.Value) != 44 {
		t.Errorf("CSRF token length = %d, want 44", len(csrfCookie.Value))
	}

	// The session resolves server-side
	if h.ValidateSession(sessionCookie.Value) == nil {
		t.Error("Session should be resolvable after sign-in")
	}
}

func TestSignIn_EmptyCredential(t *testing.T) {
	h := newTestHandler(t)
	rr := postSignIn(t, h, "")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty credential, got %d", rr.Code)
	}
}

func TestSignIn_InvalidBody(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/signin", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.SignIn(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid JSON, got %d", rr.Code)
	}
}

func TestSignIn_MalformedCredential(t *testing.T) {
	h := newTestHandler(t)
	rr := postSignIn(t, h, "not-a-jwt")

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for malformed credential, got %d", rr.Code)
	}

	var resp models.SignInResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Success {
		t.Error("Expected success=false")
	}
	if cookieFrom(rr, middleware.SessionCookieName) != nil {
		t.Error("Rejected sign-in must not touch cookies")
	}
}

func TestSignIn_ExpiredCredential(t *testing.T) {
	h := newTestHandler(t)
	claims := claimsFor("kari@example.com")
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	rr := postSignIn(t, h, makeCredential(t, claims))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired credential, got %d", rr.Code)
	}
}

func TestSignIn_WrongDomain(t *testing.T) {
	h := newTestHandler(t)
	rr := postSignIn(t, h, makeCredential(t, claimsFor("mallory@gmail.com")))

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for disallowed domain, got %d", rr.Code)
	}

	var resp models.SignInResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error == "" {
		t.Error("Expected a rejection reason")
	}
	if cookieFrom(rr, middleware.SessionCookieName) != nil {
		t.Error("Rejected sign-in must not touch cookies")
	}
}

func TestSignIn_RejectionLeavesExistingSessionIntact(t *testing.T) {
	h := newTestHandler(t)

	// Establish a valid session first
	ok := postSignIn(t, h, makeCredential(t, claimsFor("kari@example.com")))
	sessionCookie := cookieFrom(ok, middleware.SessionCookieName)
	if sessionCookie == nil {
		t.Fatal("Expected session cookie from first sign-in")
	}

	// A later bad attempt fails...
	bad := postSignIn(t, h, makeCredential(t, claimsFor("mallory@gmail.com")))
	if bad.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", bad.Code)
	}

	// ...but the original session still resolves
	if h.ValidateSession(sessionCookie.Value) == nil {
		t.Error("Existing session must survive a rejected sign-in attempt")
	}
}

func TestMe_Unauthenticated(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	rr := httptest.NewRecorder()
	h.Me(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var resp models.UserInfoResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Authenticated {
		t.Error("Expected authenticated=false without a session")
	}
}

func TestMe_Authenticated(t *testing.T) {
	h := newTestHandler(t)
	ok := postSignIn(t, h, makeCredential(t, claimsFor("kari@example.com")))
	sessionCookie := cookieFrom(ok, middleware.SessionCookieName)

	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.AddCookie(sessionCookie)
	rr := httptest.NewRecorder()
	h.Me(rr, req)

	var resp models.UserInfoResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if !resp.Authenticated {
		t.Fatal("Expected authenticated=true")
	}
	if resp.Email != "kari@example.com" {
		t.Errorf("Email = %q, want kari@example.com", resp.Email)
	}
}

func TestSignOut_ClearsEverything(t *testing.T) {
	h := newTestHandler(t)
	ok := postSignIn(t, h, makeCredential(t, claimsFor("kari@example.com")))
	sessionCookie := cookieFrom(ok, middleware.SessionCookieName)

	// Seed some conversation state for the session
	h.conversations.Append(sessionCookie.Value, models.RoleUser, "hei")

	req := httptest.NewRequest("POST", "/api/v1/auth/signout", nil)
	req.AddCookie(sessionCookie)
	rr := httptest.NewRecorder()
	h.SignOut(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if h.ValidateSession(sessionCookie.Value) != nil {
		t.Error("Session should be gone after sign-out")
	}
	if len(h.conversations.History(sessionCookie.Value)) != 0 {
		t.Error("Conversation state should be gone after sign-out")
	}

	cleared := cookieFrom(rr, middleware.SessionCookieName)
	if cleared == nil || cleared.MaxAge != -1 {
		t.Error("Session cookie should be cleared")
	}
	clearedCSRF := cookieFrom(rr, middleware.CSRFCookieName)
	if clearedCSRF == nil || clearedCSRF.MaxAge != -1 {
		t.Error("CSRF cookie should be cleared")
	}
}

func TestSignOut_WithoutSession(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/signout", nil)
	rr := httptest.NewRecorder()
	h.SignOut(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Sign-out must succeed even without a session, got %d", rr.Code)
	}
}
