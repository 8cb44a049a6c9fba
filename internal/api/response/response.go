package response

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the standard response shape used across the API:
// {success, timestamp, data?, error?}.
type Envelope struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, Envelope{Success: true, Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Error: message})
}

// ErrorWithData writes an error envelope carrying additional detail, e.g.
// per-service health checks on a degraded response.
func ErrorWithData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Error: message, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, v Envelope) {
	v.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
