// ABOUTME: JSON error writer shared by the middleware package
// ABOUTME: Keeps middleware rejections in the same shape as handler errors

package middleware

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// writeJSONError emits an error payload in the API's standard JSON shape so
// middleware rejections look the same as handler errors to clients.
func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
