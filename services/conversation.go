// ABOUTME: Per-session conversation state for the chat endpoint
// ABOUTME: Append-only message history with a single-in-flight request gate per session

package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gems-agent/backend/models"
)

// conversation holds one session's chat state. History is append-only and
// never reordered; inFlight guards the single chat call slot.
type conversation struct {
	messages  []models.Message
	inFlight  bool
	lastError string
}

// ConversationStore tracks conversations keyed by session ID. All state for
// a session disappears on Reset (sign-out).
type ConversationStore struct {
	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*conversation),
	}
}

// get returns the conversation for a session, creating it on first use.
// Caller must hold s.mu.
func (s *ConversationStore) get(sessionID string) *conversation {
	conv, ok := s.conversations[sessionID]
	if !ok {
		conv = &conversation{}
		s.conversations[sessionID] = conv
	}
	return conv
}

// Begin acquires the session's in-flight slot. Returns false when a request
// is already outstanding; the caller must not issue a second one. Acquiring
// the slot also clears any prior transport error.
func (s *ConversationStore) Begin(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(sessionID)
	if conv.inFlight {
		return false
	}
	conv.inFlight = true
	conv.lastError = ""
	return true
}

// End releases the in-flight slot. It runs on every terminal path (success,
// upstream failure, timeout) so a failed request never wedges the session.
func (s *ConversationStore) End(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.get(sessionID).inFlight = false
}

// InFlight reports whether the session has an outstanding request.
func (s *ConversationStore) InFlight(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.get(sessionID).inFlight
}

// Append adds a message to the session's history and returns it.
func (s *ConversationStore) Append(sessionID string, role models.Role, text string) models.Message {
	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(sessionID)
	conv.messages = append(conv.messages, msg)
	return msg
}

// History returns a copy of the session's ordered message list.
func (s *ConversationStore) History(sessionID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.get(sessionID)
	out := make([]models.Message, len(conv.messages))
	copy(out, conv.messages)
	return out
}

// SetError records a transport error for the session, superseding any
// previous one.
func (s *ConversationStore) SetError(sessionID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.get(sessionID).lastError = message
}

// LastError returns the session's current transport error, or "" if none.
func (s *ConversationStore) LastError(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.get(sessionID).lastError
}

// Reset drops all conversation state for a session. Called on sign-out.
func (s *ConversationStore) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, sessionID)
}
