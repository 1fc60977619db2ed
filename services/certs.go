// ABOUTME: Google JWKS fetching and ID token signature verification
// ABOUTME: Used in strict mode (AUTH_VERIFY_SIGNATURES) to verify credentials against Google's keys

package services

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// GoogleCertsURL is where Google publishes the JWKS for ID token signatures.
const GoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// ErrUnknownKeyID indicates a token references a key ID not present in the
// cached key set; Google rotates keys, so the caller refreshes and retries.
var ErrUnknownKeyID = errors.New("unknown key ID")

// jwksResponse represents the JSON structure of the JWKS endpoint.
type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single JSON Web Key in the JWKS response.
type jwkKey struct {
	Kty string `json:"kty"` // Key type (must be "RSA")
	Kid string `json:"kid"` // Key ID
	N   string `json:"n"`   // RSA modulus (base64url encoded)
	E   string `json:"e"`   // RSA exponent (base64url encoded)
	Alg string `json:"alg"` // Algorithm (Google uses "RS256")
	Use string `json:"use"` // Key use ("sig")
}

// parseJWKS parses a JWKS JSON response into a map of key ID to RSA public
// key. Non-RSA keys are silently skipped.
func parseJWKS(data []byte) (map[string]*rsa.PublicKey, error) {
	var response jwksResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS JSON: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, jwk := range response.Keys {
		if jwk.Kty != "RSA" {
			continue
		}

		pubKey, err := parseRSAPublicKey(jwk.N, jwk.E)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA key %s: %w", jwk.Kid, err)
		}

		keys[jwk.Kid] = pubKey
	}

	return keys, nil
}

// parseRSAPublicKey decodes base64url-encoded modulus and exponent into an
// RSA public key.
func parseRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// tokenHeader represents the header portion of an ID token.
type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// verifySignature checks an ID token's RS256 signature against the key set.
// Only the signature is checked here; claim validation (expiry, audience,
// email) stays in DecodeCredential so both modes share one code path.
func verifySignature(token string, keys map[string]*rsa.PublicKey) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("malformed token: expected 3 parts, got %d", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("failed to decode token header: %w", err)
	}

	var header tokenHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return fmt.Errorf("failed to parse token header: %w", err)
	}

	// Google signs ID tokens with RS256 only; anything else is an
	// algorithm confusion attempt.
	if header.Alg != "RS256" {
		return fmt.Errorf("unsupported algorithm %q: only RS256 is allowed", header.Alg)
	}
	if header.Kid == "" {
		return fmt.Errorf("token missing required kid header")
	}

	publicKey, ok := keys[header.Kid]
	if !ok {
		return fmt.Errorf("%w: %q not found in JWKS", ErrUnknownKeyID, header.Kid)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("failed to decode token signature: %w", err)
	}

	hashed := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, hashed[:], signature); err != nil {
		return fmt.Errorf("invalid token signature: %w", err)
	}

	return nil
}

// CertsClient fetches and caches Google's JWKS keys.
// Uses singleflight so concurrent refreshes collapse into one fetch.
type CertsClient struct {
	certsURL   string
	httpClient *http.Client
	keys       map[string]*rsa.PublicKey
	mu         sync.RWMutex
	sfGroup    singleflight.Group
}

// NewCertsClient creates a JWKS client and fetches the initial key set.
// If httpClient is nil, a default client with a 30s timeout is used.
func NewCertsClient(certsURL string, httpClient *http.Client) (*CertsClient, error) {
	if certsURL == "" {
		certsURL = GoogleCertsURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	client := &CertsClient{
		certsURL:   certsURL,
		httpClient: httpClient,
		keys:       make(map[string]*rsa.PublicKey),
	}

	if err := client.refresh(); err != nil {
		return nil, fmt.Errorf("failed to fetch initial JWKS: %w", err)
	}

	return client, nil
}

// Verify checks a credential's signature. If the key ID is unknown (key
// rotation), it refreshes the key set and retries once.
func (c *CertsClient) Verify(token string) error {
	c.mu.RLock()
	err := verifySignature(token, c.keys)
	c.mu.RUnlock()

	if errors.Is(err, ErrUnknownKeyID) {
		_, _, _ = c.sfGroup.Do("refresh", func() (interface{}, error) {
			return nil, c.refresh()
		})

		c.mu.RLock()
		err = verifySignature(token, c.keys)
		c.mu.RUnlock()
	}

	return err
}

// refresh fetches the JWKS and replaces the cached key set.
func (c *CertsClient) refresh() error {
	resp, err := c.httpClient.Get(c.certsURL)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS from %s: %w", c.certsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := parseJWKS(body)
	if err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	c.mu.Lock()
	c.keys = keys
	c.mu.Unlock()

	return nil
}

// SetKeysForTesting replaces the cached keys directly so tests don't need a
// mock JWKS server for every case.
func (c *CertsClient) SetKeysForTesting(keys map[string]*rsa.PublicKey) {
	c.mu.Lock()
	c.keys = keys
	c.mu.Unlock()
}
