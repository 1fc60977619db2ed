// ABOUTME: Go client for the GEMS Agent API mirroring the browser UI's session logic
// ABOUTME: Idempotent initialization, domain-gated sign-in, and single-in-flight chat sends

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gems-agent/backend/models"
)

const (
	defaultBaseURL = "http://localhost:8080"

	// Readiness polling cadence and cutoff for Initialize.
	defaultPollInterval     = 100 * time.Millisecond
	defaultReadinessTimeout = 10 * time.Second

	clientIDSuffix = ".apps.googleusercontent.com"

	// transportErrorMessage is the only failure text Send ever surfaces.
	// The underlying cause goes to the log.
	transportErrorMessage = "Could not get response. Please try again."

	csrfCookieName = "GEMS_CSRF"
	csrfHeaderName = "X-CSRF-Token"
)

// ErrMisconfiguredClientID indicates the OAuth client ID does not match the
// provider's required suffix. Initialization is not attempted.
var ErrMisconfiguredClientID = errors.New("client ID must end with " + clientIDSuffix)

// ErrInitTimeout indicates the backend never became reachable within the
// readiness window. The client may call Initialize again later.
var ErrInitTimeout = errors.New("backend not reachable before deadline")

// Session is the locally-held verified identity. It exists only between a
// successful sign-in and sign-out.
type Session struct {
	Email   string
	Name    string
	Picture string
}

// Config configures a Client. Zero values get sensible defaults.
type Config struct {
	BaseURL          string        // API base URL (default http://localhost:8080)
	ClientID         string        // Google OAuth client ID, validated on Initialize
	HTTPClient       *http.Client  // optional; a cookie jar is added if missing
	PollInterval     time.Duration // readiness probe cadence (default 100ms)
	ReadinessTimeout time.Duration // readiness cutoff (default 10s)
}

// Client drives a chat session against the backend. All exported methods are
// safe for concurrent use; the in-flight flag is the only gate on the chat
// call slot, exactly one send can be outstanding.
type Client struct {
	baseURL          string
	clientID         string
	httpClient       *http.Client
	pollInterval     time.Duration
	readinessTimeout time.Duration

	mu             sync.Mutex
	initialized    bool // latch: set once, never re-initialize
	session        *Session
	messages       []models.Message
	inFlight       bool
	initError      string
	authError      string
	transportError string
}

// New creates a client. The HTTP client gets a cookie jar so the session
// cookie set at sign-in rides along on chat requests.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 65 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	readinessTimeout := cfg.ReadinessTimeout
	if readinessTimeout <= 0 {
		readinessTimeout = defaultReadinessTimeout
	}

	return &Client{
		baseURL:          baseURL,
		clientID:         cfg.ClientID,
		httpClient:       httpClient,
		pollInterval:     pollInterval,
		readinessTimeout: readinessTimeout,
	}
}

// Initialize readies the client for sign-in. Idempotent: once the latch is
// set, later calls return immediately without touching the backend. A
// malformed client ID is a configuration error and no probing happens at
// all. Otherwise the backend health endpoint is polled at a fixed interval
// up to a bounded deadline; on timeout the latch stays unset so a later
// call can still succeed.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	if !strings.HasSuffix(c.clientID, clientIDSuffix) {
		c.initError = "Sign-in is misconfigured: invalid client ID."
		c.mu.Unlock()
		return ErrMisconfiguredClientID
	}
	c.mu.Unlock()

	ticker := time.NewTicker(c.pollInterval)
	deadline := time.NewTimer(c.readinessTimeout)
	defer ticker.Stop()
	defer deadline.Stop()

	for {
		if c.probeHealth(ctx) {
			break
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			c.mu.Lock()
			c.initError = "Could not reach the sign-in service. Please reload."
			c.mu.Unlock()
			return ErrInitTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// An existing server-side session (page reload with a live cookie) is
	// adopted as-is instead of forcing a fresh sign-in.
	session := c.fetchCurrentUser(ctx)

	c.mu.Lock()
	c.initialized = true
	c.initError = ""
	if session != nil {
		c.session = session
	}
	c.mu.Unlock()

	return nil
}

// Initialized reports whether the latch is set.
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// SignIn exchanges a Google Identity Services credential for a session. A
// rejection leaves any existing session untouched; success replaces the
// session and clears the prior rejection message.
func (c *Client) SignIn(ctx context.Context, credential string) error {
	body, err := json.Marshal(models.SignInRequest{Credential: credential})
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, "/api/v1/auth/signin", body)
	if err != nil {
		c.mu.Lock()
		c.authError = "Sign-in failed. Please try again."
		c.mu.Unlock()
		slog.Error("Sign-in request failed", "error", err)
		return err
	}
	defer resp.Body.Close()

	var result models.SignInResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.mu.Lock()
		c.authError = "Sign-in failed. Please try again."
		c.mu.Unlock()
		return err
	}

	if resp.StatusCode != http.StatusOK || !result.Success {
		message := result.Error
		if message == "" {
			message = "Sign-in was rejected."
		}
		c.mu.Lock()
		c.authError = message
		c.mu.Unlock()
		return errors.New(message)
	}

	c.mu.Lock()
	c.session = &Session{
		Email:   result.Email,
		Name:    result.Name,
		Picture: result.Picture,
	}
	c.authError = ""
	c.mu.Unlock()

	return nil
}

// SignOut tears down the local session unconditionally, then notifies the
// backend. Revocation is best-effort: its failure never blocks or reverses
// the local teardown, which has already happened.
func (c *Client) SignOut(ctx context.Context) {
	c.mu.Lock()
	hadSession := c.session != nil
	c.session = nil
	c.messages = nil
	c.authError = ""
	c.transportError = ""
	c.mu.Unlock()

	if !hadSession {
		return
	}

	resp, err := c.post(ctx, "/api/v1/auth/signout", []byte("{}"))
	if err != nil {
		slog.Warn("Sign-out revocation failed", "error", err)
		return
	}
	resp.Body.Close()
}

// Send posts one user message and waits for the terminal outcome. It is a
// silent no-op when the trimmed text is empty, when no session exists, or
// when another send is outstanding: a debounce, not an error. The user
// message enters history before the network call; the in-flight flag is
// released on every terminal path.
func (c *Client) Send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if text == "" || c.session == nil || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.transportError = ""
	c.messages = append(c.messages, models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	})
	c.mu.Unlock()

	reply, err := c.postChat(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if err != nil {
		slog.Error("Chat send failed", "error", err)
		c.transportError = transportErrorMessage
		return
	}

	c.messages = append(c.messages, models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAgent,
		Text:      reply,
		CreatedAt: time.Now(),
	})
	c.transportError = ""
}

// Session returns the current session, or nil when signed out.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Messages returns a copy of the ordered conversation.
func (c *Client) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// InFlight reports whether a send is outstanding.
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// InitError returns the current initialization error message, or "".
func (c *Client) InitError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initError
}

// AuthError returns the current sign-in rejection message, or "".
func (c *Client) AuthError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authError
}

// TransportError returns the current chat failure message, or "".
func (c *Client) TransportError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transportError
}

// probeHealth checks whether the backend answers its health endpoint.
func (c *Client) probeHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fetchCurrentUser asks the backend who the cookie belongs to. Returns nil
// when unauthenticated or on any error.
func (c *Client) fetchCurrentUser(ctx context.Context) *Session {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/auth/me", nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var info models.UserInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || !info.Authenticated {
		return nil
	}

	return &Session{Email: info.Email, Name: info.Name, Picture: info.Picture}
}

// postChat performs the single chat request. Any non-2xx status, decode
// failure, or blank reply is a transport failure.
func (c *Client) postChat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(models.ChatRequest{Message: message})
	if err != nil {
		return "", err
	}

	resp, err := c.post(ctx, "/api/v1/chat", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}

	var result models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}

	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		return "", errors.New("chat response carried no reply")
	}

	return reply, nil
}

// post issues a JSON POST with the CSRF header mirrored from the cookie jar.
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.csrfToken(); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}
	return c.httpClient.Do(req)
}

// csrfToken reads the CSRF cookie from the jar, or "" when absent.
func (c *Client) csrfToken() string {
	u, err := url.Parse(c.baseURL)
	if err != nil || c.httpClient.Jar == nil {
		return ""
	}
	for _, cookie := range c.httpClient.Jar.Cookies(u) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}
