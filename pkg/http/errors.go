package http

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every API response
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`   // Machine-readable error code
	Message string `json:"message,omitempty"` // Human-readable message
}

// WriteSuccess writes data inside a successful envelope
func WriteSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeEnvelope(w, statusCode, Envelope{Success: true, Data: data})
}

// WriteError writes a JSON error envelope with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeEnvelope(w, statusCode, Envelope{Error: errorCode, Message: message})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(env)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteQuotaExceeded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusPaymentRequired, "quota_exceeded", message)
}

func WriteFeatureDisabled(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "feature_disabled", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteSearchFailed(w http.ResponseWriter) {
	WriteError(w, http.StatusBadGateway, "search_failed", "search failed, try again")
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
