package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/voxcmd/internal/session"
	"github.com/MrWong99/voxcmd/internal/training"
)

// envelope is the JSON body of every non-streaming response except the
// training export, which is served as the bare export document.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// respondError renders err as {"success": false, "error": "..."} with a
// status derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, envelope{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, training.ErrUnknownIntent),
		errors.Is(err, training.ErrUtteranceNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, training.ErrVersionMismatch):
		return http.StatusConflict
	case errors.Is(err, training.ErrEmptyUtterance),
		errors.Is(err, training.ErrInvalidUtterance),
		errors.Is(err, training.ErrInvalidExport),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: failed to encode response", "err", err)
	}
}
