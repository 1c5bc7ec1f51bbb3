package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "password-invalid", "message": "wrong password"}
//
// "error" is machine-readable. For authentication outcomes it is the
// outcome code itself (see apperror.Code), so clients can switch on it.
//
// TWO KINDS OF FAILURE:
// The service layer returns expected outcomes as a Result.Code and faults
// as a Go error. writeOutcome handles the first, writeError the second.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/authcore/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "email-unknown")
	Message string `json:"message"` // Human-readable description
}

// codeStatus maps every outcome code to its HTTP status.
var codeStatus = map[apperror.Code]int{
	apperror.EmailUnknown:            http.StatusUnauthorized,
	apperror.PasswordInvalid:         http.StatusUnauthorized,
	apperror.OauthVerificationFailed: http.StatusUnauthorized,
	apperror.OauthIDUnknown:          http.StatusUnauthorized,
	apperror.SessionInvalid:          http.StatusUnauthorized,
	apperror.UserInactive:            http.StatusForbidden,
	apperror.EmailExists:             http.StatusConflict,
	apperror.DuplicateProvider:       http.StatusConflict,
	apperror.EmailInvalid:            http.StatusBadRequest,
	apperror.PasswordTooLong:         http.StatusBadRequest,
	apperror.PasswordTooWeak:         http.StatusBadRequest,
	apperror.UnknownProvider:         http.StatusNotFound,
}

// codeMessage is the human-readable text sent with each outcome code.
var codeMessage = map[apperror.Code]string{
	apperror.EmailUnknown:            "no account with that email",
	apperror.PasswordInvalid:         "wrong password",
	apperror.OauthVerificationFailed: "the identity provider rejected the login",
	apperror.OauthIDUnknown:          "no account is linked to that identity",
	apperror.SessionInvalid:          "valid authentication required",
	apperror.UserInactive:            "the account is disabled",
	apperror.EmailExists:             "an account with that email already exists",
	apperror.DuplicateProvider:       "provider already registered",
	apperror.EmailInvalid:            "email address is not valid",
	apperror.PasswordTooLong:         "password is longer than 72 bytes",
	apperror.PasswordTooWeak:         "password is too weak",
	apperror.UnknownProvider:         "unknown identity provider",
}

// statusForCode returns the HTTP status for an outcome code.
func statusForCode(code apperror.Code) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusBadRequest
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// You MUST set headers and status code BEFORE writing the body.
// Once you call w.Write() (which Encode does internally), the headers are sent.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeOutcome sends an expected authentication outcome.
func writeOutcome(w http.ResponseWriter, code apperror.Code) {
	writeJSON(w, statusForCode(code), ErrorResponse{
		Error:   string(code),
		Message: codeMessage[code],
	})
}

// writeError maps an error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer should not know about HTTP status codes; this is where
// its errors get translated. An error carrying an outcome code is sent like
// writeOutcome would; categorised errors map to 400/403/404/409; everything
// else is a 500 whose details are never exposed to the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	if appErr.Code != "" {
		writeJSON(w, statusForCode(appErr.Code), ErrorResponse{
			Error:   string(appErr.Code),
			Message: appErr.Message,
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
	case errors.Is(err, apperror.ErrAuth):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	}

	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "An internal error occurred"
	}
	writeJSON(w, status, ErrorResponse{Error: errorType, Message: message})
}
