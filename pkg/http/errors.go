package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse is the JSON body of every error the gate returns
type ErrorResponse struct {
	Error             string `json:"error"`                         // Machine-readable error code
	Message           string `json:"message"`                       // Human-readable message
	RetryAfterMinutes int    `json:"retry_after_minutes,omitempty"` // Only set on lockout
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeErrorResponse(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(resp)
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, "service_unavailable", message)
}

// WriteTooManyRequests writes a 429 without a retry estimate
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

// WriteLoginBlocked writes a 429 with a Retry-After header in seconds
func WriteLoginBlocked(w http.ResponseWriter, message string, retryAfterMinutes int) {
	if retryAfterMinutes > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterMinutes*60))
	}
	writeErrorResponse(w, http.StatusTooManyRequests, ErrorResponse{
		Error:             "login_blocked",
		Message:           message,
		RetryAfterMinutes: retryAfterMinutes,
	})
}
