// ABOUTME: Tests for JWKS parsing and ID token signature verification
// ABOUTME: Uses locally generated RSA keys and a stub JWKS server

package services

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
)

// signToken produces an RS256-signed token with the given kid and payload.
func signToken(t *testing.T, key *rsa.PrivateKey, kid string, payload map[string]interface{}) string {
	t.Helper()

	headerJSON, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT", "kid": kid})
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(payloadJSON)

	hashed := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

// jwksJSON encodes a public key as a one-entry JWKS document.
func jwksJSON(t *testing.T, kid string, pub *rsa.PublicKey) []byte {
	t.Helper()

	e := big.NewInt(int64(pub.E))
	doc := map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(e.Bytes()),
		}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal JWKS: %v", err)
	}
	return data
}

func TestParseJWKS(t *testing.T) {
	key := newTestKey(t)

	keys, err := parseJWKS(jwksJSON(t, "key-1", &key.PublicKey))
	if err != nil {
		t.Fatalf("parseJWKS failed: %v", err)
	}

	pub, ok := keys["key-1"]
	if !ok {
		t.Fatal("parseJWKS should index the key by kid")
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Error("parsed key does not match the original")
	}
}

func TestParseJWKS_SkipsNonRSA(t *testing.T) {
	doc := []byte(`{"keys":[{"kty":"EC","kid":"ec-1","crv":"P-256"}]}`)

	keys, err := parseJWKS(doc)
	if err != nil {
		t.Fatalf("parseJWKS failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("parseJWKS should skip non-RSA keys, got %d keys", len(keys))
	}
}

func TestParseJWKS_InvalidJSON(t *testing.T) {
	if _, err := parseJWKS([]byte("not json")); err == nil {
		t.Error("parseJWKS should reject invalid JSON")
	}
}

func TestVerifySignature(t *testing.T) {
	key := newTestKey(t)
	keys := map[string]*rsa.PublicKey{"key-1": &key.PublicKey}

	token := signToken(t, key, "key-1", map[string]interface{}{"email": "kari@example.com"})
	if err := verifySignature(token, keys); err != nil {
		t.Errorf("verifySignature failed for a valid token: %v", err)
	}
}

func TestVerifySignature_WrongKey(t *testing.T) {
	signingKey := newTestKey(t)
	otherKey := newTestKey(t)
	keys := map[string]*rsa.PublicKey{"key-1": &otherKey.PublicKey}

	token := signToken(t, signingKey, "key-1", map[string]interface{}{"email": "kari@example.com"})
	if err := verifySignature(token, keys); err == nil {
		t.Error("verifySignature should reject a token signed with a different key")
	}
}

func TestVerifySignature_UnknownKid(t *testing.T) {
	key := newTestKey(t)

	token := signToken(t, key, "rotated-key", map[string]interface{}{"email": "kari@example.com"})
	err := verifySignature(token, map[string]*rsa.PublicKey{})
	if !errors.Is(err, ErrUnknownKeyID) {
		t.Errorf("verifySignature = %v, want ErrUnknownKeyID", err)
	}
}

func TestVerifySignature_RejectsNonRS256(t *testing.T) {
	// alg: none with an otherwise plausible shape
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","kid":"key-1"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
	token := header + "." + payload + "."

	key := newTestKey(t)
	keys := map[string]*rsa.PublicKey{"key-1": &key.PublicKey}
	if err := verifySignature(token, keys); err == nil {
		t.Error("verifySignature should reject non-RS256 algorithms")
	}
}

func TestCertsClient_RefreshesOnUnknownKid(t *testing.T) {
	key := newTestKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(jwksJSON(t, "key-2", &key.PublicKey))
	}))
	defer server.Close()

	client, err := NewCertsClient(server.URL, nil)
	if err != nil {
		t.Fatalf("NewCertsClient failed: %v", err)
	}

	// Simulate stale cache: the server now serves key-2 but the client
	// only knows an old key set.
	client.SetKeysForTesting(map[string]*rsa.PublicKey{})

	token := signToken(t, key, "key-2", map[string]interface{}{"email": "kari@example.com"})
	if err := client.Verify(token); err != nil {
		t.Errorf("Verify should refresh keys and succeed, got: %v", err)
	}
}

func TestNewCertsClient_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewCertsClient(server.URL, nil); err == nil {
		t.Error("NewCertsClient should fail when the initial fetch fails")
	}
}
