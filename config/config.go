// ABOUTME: Configuration loader for the GEMS Agent backend
// ABOUTME: Loads settings from environment variables with defaults and validation

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// googleClientIDSuffix is the suffix every valid Google OAuth web client ID
// carries. A client ID without it is a deployment mistake, not a user error,
// so it is rejected at startup.
const googleClientIDSuffix = ".apps.googleusercontent.com"

// defaultSystemInstruction describes the agent's role when SYSTEM_INSTRUCTION
// is not provided by the environment.
const defaultSystemInstruction = `You are an AI Agent built for a consulting company to support resource management, sales enablement, market analysis, and operational automation.

Your primary purpose is to transform siloed company data (Recman, Flowcase/CVpartner, Gmail, internal docs) into actionable insights and assist users in making better decisions faster.`

type Config struct {
	// Server
	Port               string
	CORSAllowedOrigins []string // allowed CORS origins (empty = block all cross-origin)
	CookieSecure       bool     // Set Secure flag on session cookies (default: true)
	CacheTTL           int      // seconds, default for general cache

	// Authentication
	GoogleClientID     string // Google OAuth web client ID, must end with .apps.googleusercontent.com
	AllowedEmailDomain string // organizational domain suffix, normalized to a leading "@"
	VerifySignatures   bool   // verify ID token signatures against Google's JWKS (default: false)
	SessionTTL         int    // seconds, default 3600

	// Rate Limiting
	RateLimitEnabled bool // Enable rate limiting (default: true)
	RateLimitAuth    int  // Requests per minute for auth endpoints (default: 10)
	RateLimitChat    int  // Requests per minute for the chat endpoint (default: 30)
	RateLimitDefault int  // Requests per minute for all other endpoints (default: 100)

	// Vertex AI
	Project           string
	Location          string
	RAGCorpusID       string
	GeminiModel       string
	SystemInstruction string
	RAGTopK           int     // retrieval depth, default 10
	RAGHybridAlpha    float64 // dense/sparse balance for hybrid search, default 0.5
	ChatTimeout       int     // seconds, per-request deadline for the RAG call (default: 60)
}

// VertexConfigured returns true if the managed RAG pipeline can be reached.
func (c *Config) VertexConfigured() bool {
	return c.Project != "" && c.RAGCorpusID != ""
}

// CorpusName returns the full RAG corpus resource name.
func (c *Config) CorpusName() string {
	return fmt.Sprintf("projects/%s/locations/%s/ragCorpora/%s", c.Project, c.Location, c.RAGCorpusID)
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowedOrigins: getEnvStringList("CORS_ALLOWED_ORIGINS"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", true),
		CacheTTL:           getEnvInt("CACHE_TTL", 300),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		AllowedEmailDomain: normalizeDomain(os.Getenv("ALLOWED_EMAIL_DOMAIN")),
		VerifySignatures:   getEnvBool("AUTH_VERIFY_SIGNATURES", false),
		SessionTTL:         getEnvInt("SESSION_TTL", 3600),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitAuth:    getEnvInt("RATE_LIMIT_AUTH", 10),
		RateLimitChat:    getEnvInt("RATE_LIMIT_CHAT", 30),
		RateLimitDefault: getEnvInt("RATE_LIMIT_DEFAULT", 100),

		Project:           os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Location:          getEnv("VERTEX_AI_LOCATION", "europe-west1"),
		RAGCorpusID:       os.Getenv("RAG_CORPUS_ID"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
		SystemInstruction: getEnv("SYSTEM_INSTRUCTION", defaultSystemInstruction),
		RAGTopK:           getEnvInt("RAG_TOP_K", 10),
		RAGHybridAlpha:    getEnvFloat("RAG_HYBRID_ALPHA", 0.5),
		ChatTimeout:       getEnvInt("CHAT_TIMEOUT", 60),
	}

	// Validate required fields
	if cfg.GoogleClientID == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if !strings.HasSuffix(cfg.GoogleClientID, googleClientIDSuffix) {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID is malformed: must end with %s", googleClientIDSuffix)
	}
	if cfg.AllowedEmailDomain == "" {
		return nil, fmt.Errorf("ALLOWED_EMAIL_DOMAIN is required")
	}

	// Validate rate limit values
	for _, rl := range []struct {
		name  string
		value int
	}{
		{"RATE_LIMIT_AUTH", cfg.RateLimitAuth},
		{"RATE_LIMIT_CHAT", cfg.RateLimitChat},
		{"RATE_LIMIT_DEFAULT", cfg.RateLimitDefault},
	} {
		if rl.value < 1 || rl.value > 10000 {
			return nil, fmt.Errorf("%s must be between 1 and 10000, got %d", rl.name, rl.value)
		}
	}

	if cfg.ChatTimeout < 1 {
		return nil, fmt.Errorf("CHAT_TIMEOUT must be at least 1 second, got %d", cfg.ChatTimeout)
	}
	if cfg.RAGTopK < 1 {
		return nil, fmt.Errorf("RAG_TOP_K must be at least 1, got %d", cfg.RAGTopK)
	}
	if cfg.RAGHybridAlpha < 0 || cfg.RAGHybridAlpha > 1 {
		return nil, fmt.Errorf("RAG_HYBRID_ALPHA must be between 0 and 1, got %g", cfg.RAGHybridAlpha)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvStringList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// normalizeDomain lowercases the domain and ensures a leading "@" so the
// allow-list check is a plain suffix match against the email claim.
func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}
	if !strings.HasPrefix(domain, "@") {
		domain = "@" + domain
	}
	return domain
}
