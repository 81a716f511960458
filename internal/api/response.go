package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// requestIDHeader mirrors middleware.RequestIDHeader; the middleware sets it
// on the response before any handler runs.
const requestIDHeader = "X-Request-ID"

// ErrorResponse is the error envelope of every endpoint. Code is a service
// error kind (not_found, conflict, ...) or a request-level code such as
// validation_error. RequestID lets a caretaker quote a failure back to us.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// RespondError writes an error without a code
func RespondError(w http.ResponseWriter, status int, message string) {
	respondError(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error with a machine-readable code
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	respondError(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes field-level validation errors as a 422
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	respondError(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_error",
		Details: fieldErrors,
	})
}

func respondError(w http.ResponseWriter, status int, body ErrorResponse) {
	body.RequestID = w.Header().Get(requestIDHeader)
	RespondJSON(w, status, body)
}
