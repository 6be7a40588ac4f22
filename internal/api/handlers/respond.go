package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

var errEmptyBody = errors.New("empty request body")

type errorEnvelope struct {
	Success      bool    `json:"success"`
	Error        string  `json:"error"`
	Timestamp    float64 `json:"timestamp"`
	StatusCode   int     `json:"status_code"`
	FallbackUsed *bool   `json:"fallback_used,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

// WriteError writes the JSON error envelope used by every endpoint.
func WriteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorEnvelope{Error: msg, Timestamp: unixNow(), StatusCode: status})
}

func writeSynthesisError(w http.ResponseWriter, msg string, fallbackUsed bool) {
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{
		Error:        msg,
		Timestamp:    unixNow(),
		StatusCode:   http.StatusInternalServerError,
		FallbackUsed: &fallbackUsed,
	})
}

// decodeJSON decodes the request body into dst. An empty body yields
// errEmptyBody.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

func unixNow() float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
