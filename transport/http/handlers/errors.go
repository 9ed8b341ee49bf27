package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Common HTTP handler errors
var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrUnauthorized     = errors.New("unauthorized access")
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as a JSON error reply
func WriteError(w http.ResponseWriter, status int, err error, message string) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Message: message})
}

// requireGet rejects anything but GET and HEAD
func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		WriteError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed, "")
		return false
	}
	return true
}
