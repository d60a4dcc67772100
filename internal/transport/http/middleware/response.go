package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes the same {message, error} shape the handlers use.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
		Error   bool   `json:"error"`
	}{msg, true})
}
