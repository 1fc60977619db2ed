// ABOUTME: Session management service for the BFF sign-in flow
// ABOUTME: Stores verified identities in the cache backend with TTL expiry

package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/gems-agent/backend/cache"
	"github.com/gems-agent/backend/models"
)

// SessionService manages server-side authentication sessions. A session is
// created only after the credential decoded cleanly and passed the domain
// check; it holds the verified identity, never the raw credential.
type SessionService struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewSessionService creates a session service with the given session TTL.
func NewSessionService(c *cache.Cache, ttl time.Duration) *SessionService {
	return &SessionService{cache: c, ttl: ttl}
}

// Create stores a new session for the verified identity and returns the
// cryptographically secure session ID.
func (s *SessionService) Create(claims *IDTokenClaims) (string, error) {
	// 32 bytes of cryptographically secure random data for the session ID
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	sessionID := base64.URLEncoding.EncodeToString(idBytes)

	now := time.Now()
	session := &models.Session{
		ID:        sessionID,
		Email:     claims.Email,
		Name:      claims.Name,
		Picture:   claims.Picture,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.cache.SetWithTTL(sessionKey(sessionID), session, s.ttl)

	return sessionID, nil
}

// Get retrieves a session by ID.
func (s *SessionService) Get(sessionID string) (*models.Session, error) {
	val, ok := s.cache.Get(sessionKey(sessionID))
	if !ok {
		return nil, errors.New("session not found")
	}

	session, ok := val.(*models.Session)
	if !ok {
		return nil, errors.New("invalid session data")
	}

	return session, nil
}

// Delete removes a session. Missing sessions are a no-op so sign-out is
// always safe to call.
func (s *SessionService) Delete(sessionID string) {
	s.cache.Clear(sessionKey(sessionID))
}

// sessionKey returns the cache key for a session ID.
func sessionKey(sessionID string) string {
	return "session:" + sessionID
}
