package utilities

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response body for every API endpoint.
// Message is always non-empty on failure paths so clients can surface
// it verbatim.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	WriteJSON(w, status, Envelope{Success: false, Message: message})
}
