package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the flat error envelope returned to frontends.
// Detail is populated only when the caller set the debug header.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     message,
		Detail:    detail,
		RequestID: requestID,
	})
}

func WriteBadRequest(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, message, "")
}

func WriteUnauthorized(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusUnauthorized, "unauthorized", "")
}

func WriteMethodNotAllowed(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusMethodNotAllowed, "method not allowed", "")
}

// WriteNotConfigured reports the missing upstream API key. This is a
// deployment fault, not a caller fault, hence 500.
func WriteNotConfigured(w http.ResponseWriter, requestID string) {
	WriteError(w, requestID, http.StatusInternalServerError, "upstream API key not configured", "")
}

func WriteUpstreamError(w http.ResponseWriter, requestID, message, detail string) {
	WriteError(w, requestID, http.StatusBadGateway, message, detail)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, message, "")
}
