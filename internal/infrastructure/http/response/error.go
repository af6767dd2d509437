package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the canonical JSON shape for every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable code, a human message, and
// optional per-field validation details.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail names a single field-level validation failure.
type ValidationDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Error writes a JSON error envelope with the given code and message.
func Error(w http.ResponseWriter, code, message string, status int) {
	body := ErrorResponse{Error: ErrorBody{Code: code, Message: message}}
	payload, err := json.Marshal(body)
	if err != nil {
		// json.Marshal on a plain struct of strings cannot fail; this is
		// an unreachable fallback kept for defense against future fields.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// ValidationError writes a 400 response carrying a single field failure.
func ValidationError(w http.ResponseWriter, field, issue string) {
	body := ErrorResponse{Error: ErrorBody{
		Code:    "VALIDATION_ERROR",
		Message: "validation failed",
		Details: []ValidationDetail{{Field: field, Issue: issue}},
	}}
	payload, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(payload)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// Conflict writes a 409 response.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, "CONFLICT", message, http.StatusConflict)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// Internal writes a 500 response with an opaque message — never the raw
// underlying error, which is logged separately.
func Internal(w http.ResponseWriter) {
	Error(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
}
