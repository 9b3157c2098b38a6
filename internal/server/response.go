package server

import (
	"encoding/json"
	"net/http"
)

// Error codes used in API error responses.
const (
	codeValidationFailed = "VALIDATION_FAILED"
	codeNotFound         = "NOT_FOUND"
	codeConflict         = "CONFLICT"
	codeOccupied         = "OCCUPIED"
	codeForbidden        = "FORBIDDEN"
	codeStorageError     = "STORAGE_ERROR"
	codeInternal         = "INTERNAL_ERROR"
	codeRateLimited      = "RATE_LIMITED"
)

// errorResponse wraps an error API response.
type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already written; an encode failure here can only be
	// logged by the caller's middleware.
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error JSON response.
func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondErrorDetails sends an error JSON response with extra details.
func respondErrorDetails(w http.ResponseWriter, status int, message, code string, details map[string]any) {
	respondJSON(w, status, errorResponse{Error: message, Code: code, Details: details})
}
