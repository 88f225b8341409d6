package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// envelope is the uniform REST response shape: exactly one of Data or Error
// is set, discriminated by Success.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// respondData writes a successful envelope.
func respondData(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// respondError writes a failed envelope. Client mistakes (bad payloads,
// missing fields) and upstream provider failures both land here; status
// distinguishes them.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: false, Error: message})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "error", err)
	}
}

// decodeJSON reads the request body into v. Unknown fields are tolerated so
// clients can send extra metadata without breaking.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
