package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error      string `json:"error"`                // Human-readable message
	Code       string `json:"code"`                 // Machine-readable error code
	RetryAfter *int   `json:"retryAfter,omitempty"` // Seconds until a throttle window resets
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: message,
		Code:  errorCode,
	})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}

// WriteTooManyRequests writes a 429 with both a Retry-After header and a retryAfter body field
func WriteTooManyRequests(w http.ResponseWriter, message string, retryAfter int) {
	if retryAfter < 1 {
		retryAfter = 60
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:      message,
		Code:       "rate_limit_exceeded",
		RetryAfter: &retryAfter,
	})
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
