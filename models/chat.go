// ABOUTME: Chat data models and API contracts
// ABOUTME: Messages, roles, and the /chat request/response shapes

package models

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks a message typed by the signed-in user.
	RoleUser Role = "user"
	// RoleAgent marks a reply produced by the RAG pipeline.
	RoleAgent Role = "agent"
)

// Message is one entry in a conversation. Messages are append-only:
// insertion order is display order and entries are never edited in place.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body of POST /api/v1/chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// HistoryResponse returns the ordered conversation for the current session.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
