package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error envelope shared by every endpoint.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// WriteError writes an ErrorBody with the given status.
func WriteError(w http.ResponseWriter, status int, stage, message string, retryable bool) {
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{Stage: stage, Message: message, Retryable: retryable}})
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
