package rest

import (
	"encoding/json"
	"net/http"

	"github.com/italolelis/mp3grab/internal/logctx"
)

const (
	msgNoURL          = "No URL provided"
	msgInvalidBody    = "invalid request body"
	msgToolFailed     = "yt-dlp failed"
	msgInternalServer = "internal server error"
)

// ValidationError is returned for request bodies that cannot be processed.
// It is surfaced to the client as 400 with Reason as the error message.
type ValidationError struct {
	Field  string // Request field that failed validation
	Reason string // Client-facing message
	Err    error  // Underlying decode error, if any
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type errorResponse struct {
	Error string `json:"error"`
}

// toolFailureResponse always carries details, even when the tool printed nothing.
type toolFailureResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to encode response", "err", err)
	}
}
