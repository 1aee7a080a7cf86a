package common

import (
	"encoding/json"
	"net/http"
)

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders the canonical error payload: {"error": "<message>"}.
// The message is the only detail that crosses the trust boundary; anything
// richer belongs in server-side logs.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Received acknowledges a webhook delivery. Providers stop retrying once they
// see a 2xx, so duplicates and ignored event types answer through here too.
func Received(w http.ResponseWriter) {
	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
