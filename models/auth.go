// ABOUTME: Auth request/response models for the BFF sign-in flow
// ABOUTME: Defines the session structure and sign-in/sign-out API contracts

package models

import "time"

// SignInRequest carries the raw Google Identity Services credential posted
// by the frontend after the user completes the sign-in widget.
type SignInRequest struct {
	Credential string `json:"credential"`
}

// SignInResponse represents the result of a sign-in attempt.
type SignInResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UserInfoResponse represents the current user's authentication state.
type UserInfoResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// Session stores server-side authentication state. It exists only after
// credential decoding and the domain check both succeed, and lives until
// sign-out or expiry.
type Session struct {
	ID        string    `json:"-"` // never exposed to the client
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
