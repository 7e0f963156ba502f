package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/garago/auth-service/internal/models"
)

// ErrorResponse is the wire shape of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	// RemainingAttempts and RetryAfterMinutes are present only on login
	// failures that carry them.
	RemainingAttempts *int `json:"remaining_attempts,omitempty"`
	RetryAfterMinutes *int `json:"retry_after_minutes,omitempty"`
}

// WriteJSON writes a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// WriteAuthError maps an auth-core error to its HTTP shape. Anything that is
// not an AuthError is reported as an internal error without detail.
func WriteAuthError(w http.ResponseWriter, err error) {
	var ae *models.AuthError
	if !errors.As(err, &ae) {
		WriteError(w, http.StatusInternalServerError, string(models.CodeInternal), "internal server error")
		return
	}

	resp := ErrorResponse{
		Error:   string(ae.Code),
		Message: ae.Message,
	}
	if ae.RemainingAttempts >= 0 {
		remaining := ae.RemainingAttempts
		resp.RemainingAttempts = &remaining
	}
	if ae.RetryAfterMinutes > 0 {
		retry := ae.RetryAfterMinutes
		resp.RetryAfterMinutes = &retry
	}

	WriteJSON(w, statusForCode(ae.Code), resp)
}

func statusForCode(code models.ErrorCode) int {
	switch code {
	case models.CodeValidation:
		return http.StatusBadRequest
	case models.CodeInvalidCredentials, models.CodeEmailNotVerified:
		return http.StatusUnauthorized
	case models.CodeAccountLocked:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
