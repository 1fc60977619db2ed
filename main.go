// ABOUTME: Entry point for the GEMS Agent backend service
// ABOUTME: Google sign-in BFF plus a chat proxy to the Vertex AI RAG pipeline

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/gems-agent/backend/cache"
	"github.com/gems-agent/backend/config"
	"github.com/gems-agent/backend/handlers"
	"github.com/gems-agent/backend/logger"
	"github.com/gems-agent/backend/middleware"
	"github.com/gems-agent/backend/services"
	"github.com/gems-agent/backend/web"
)

func main() {
	// .env is for local development; in Cloud Run the environment is real
	_ = godotenv.Load()

	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting GEMS Agent Backend")
	slog.Info("Auth configured", "allowed_domain", cfg.AllowedEmailDomain, "verify_signatures", cfg.VerifySignatures)

	var certs *services.CertsClient
	if cfg.VerifySignatures {
		certs, err = services.NewCertsClient(services.GoogleCertsURL, nil)
		if err != nil {
			slog.Error("Failed to fetch Google signing keys", "error", err)
			os.Exit(1)
		}
		slog.Info("Signature verification enabled")
	}

	var responder services.Responder
	if cfg.VertexConfigured() {
		vertex, err := services.NewVertexResponder(context.Background(), cfg)
		if err != nil {
			slog.Error("Failed to initialize Vertex AI client", "error", err)
			os.Exit(1)
		}
		responder = vertex
		slog.Info("Vertex AI configured", "project", cfg.Project, "location", cfg.Location, "model", cfg.GeminiModel)
	} else {
		slog.Warn("Vertex AI not configured, chat endpoint will report unavailable")
	}

	cacheTTL := time.Duration(cfg.CacheTTL) * time.Second
	c := cache.New(cacheTTL)
	slog.Info("Cache initialized", "ttl", cacheTTL)

	h := handlers.NewHandler(cfg, c, responder, certs)

	limiters := newLimiters(cfg)
	cors := middleware.CORS(cfg.CORSAllowedOrigins)
	csrf := middleware.CSRF()
	requireSession := middleware.RequireSession(h.ValidateSession)

	for _, route := range h.Routes() {
		handler := requireMethod(route.Method, route.Handler)
		if route.Protected {
			handler = requireSession(handler)
		}
		handler = middleware.Chain(handler,
			middleware.LogRequest,
			cors,
			csrf,
			middleware.RateLimit(limiters[route.Limit], limiterKey(route)),
		)
		http.HandleFunc(route.Path, handler)
	}

	// Everything else is the embedded chat frontend
	http.Handle("/", web.SPAHandler())

	addr := ":" + cfg.Port
	slog.Info("Server listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// newLimiters builds one fixed-window limiter per rate limit class, or a nil
// map entry for every class when rate limiting is disabled.
func newLimiters(cfg *config.Config) map[string]*middleware.RateLimiter {
	limiters := map[string]*middleware.RateLimiter{
		handlers.LimitAuth:    nil,
		handlers.LimitChat:    nil,
		handlers.LimitDefault: nil,
	}

	if !cfg.RateLimitEnabled {
		slog.Warn("Rate limiting disabled")
		return limiters
	}

	limiters[handlers.LimitAuth] = middleware.NewRateLimiter(cfg.RateLimitAuth, time.Minute)
	limiters[handlers.LimitChat] = middleware.NewRateLimiter(cfg.RateLimitChat, time.Minute)
	limiters[handlers.LimitDefault] = middleware.NewRateLimiter(cfg.RateLimitDefault, time.Minute)
	return limiters
}

// limiterKey picks the rate limit key function: session-scoped for
// session-authenticated routes, client IP otherwise.
func limiterKey(route handlers.Route) func(*http.Request) string {
	if route.Protected {
		return middleware.SessionKey
	}
	return middleware.ClientIP
}

// requireMethod rejects requests with the wrong HTTP method. OPTIONS never
// reaches here: the CORS middleware answers preflights first.
func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			w.Write([]byte(`{"error":"Method not allowed","code":405}`))
			return
		}
		next(w, r)
	}
}
