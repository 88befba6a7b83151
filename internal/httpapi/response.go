package httpapi

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response contract returned to capture clients.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Invalid []string `json:"invalid,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Debug   []string `json:"debug,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
