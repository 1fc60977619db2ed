// ABOUTME: CORS middleware for cross-origin frontend requests
// ABOUTME: Reflects configured origins and handles preflight OPTIONS

package middleware

import "net/http"

// CORS returns middleware that adds CORS headers for configured origins.
// The session cookie requires credentialed requests, so the wildcard origin
// is never used: the request origin is reflected only when it is in the
// allow-list. An empty allow-list means same-origin only (no headers added).
// OPTIONS preflights are answered without calling the wrapped handler.
func CORS(allowedOrigins []string) func(http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token")
				w.Header().Set("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next(w, r)
		}
	}
}
