// ABOUTME: Middleware composition helper
// ABOUTME: Wraps a handler so the first-listed middleware runs outermost

package middleware

import "net/http"

// Middleware wraps an http.HandlerFunc with cross-cutting behavior.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain composes middleware around a handler. Listing order is execution
// order: Chain(h, logging, cors) runs logging first, then cors, then h.
func Chain(h http.HandlerFunc, middlewares ...Middleware) http.HandlerFunc {
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
