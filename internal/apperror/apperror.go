// Package apperror defines the errors shared by every layer of the service.
//
// There are two kinds of failure in this codebase:
//
//   - EXPECTED OUTCOMES of authentication (wrong password, unknown email, ...).
//     These are values of the closed Code enumeration below. They are routine
//     and get shown to end users, so services return them as data.
//   - FAULTS (database down, broken invariant). These are ordinary Go errors,
//     wrapped with context on the way up, that abort the current operation.
//
// AppError ties the two together for the few places (hashing, registration,
// provider registration) that must return a Code through an error return.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("authentication failed")
)

// Code identifies an expected authentication outcome.
// The string values are part of the public API (JSON "error" field).
type Code string

const (
	EmailUnknown            Code = "email-unknown"
	PasswordInvalid         Code = "password-invalid"
	UserInactive            Code = "user-inactive"
	OauthVerificationFailed Code = "oauth-verification-failed"
	OauthIDUnknown          Code = "oauth-id-unknown"
	EmailExists             Code = "email-exists"
	UnknownProvider         Code = "unknown-provider"
	PasswordTooLong         Code = "password-too-long"
	PasswordTooWeak         Code = "password-too-weak"
	DuplicateProvider       Code = "duplicate-provider"
	EmailInvalid            Code = "email-invalid"
	SessionInvalid          Code = "session-invalid"
)

// Error lets a Code be used directly as an errors.Is target.
func (c Code) Error() string {
	return string(c)
}

// Codes lists every known Code.
func Codes() []Code {
	return []Code{
		EmailUnknown, PasswordInvalid, UserInactive, OauthVerificationFailed,
		OauthIDUnknown, EmailExists, UnknownProvider, PasswordTooLong,
		PasswordTooWeak, DuplicateProvider, EmailInvalid, SessionInvalid,
	}
}

type AppError struct {
	Err     error  // sentinel category (ErrValidation, ErrConflict, ...)
	Code    Code   // optional: expected-outcome code
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches a Code target against e.Code, so callers can write
// errors.Is(err, apperror.PasswordTooLong) without caring about the category.
func (e *AppError) Is(target error) bool {
	c, ok := target.(Code)
	return ok && e.Code != "" && c == e.Code
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// WithCode attaches an outcome code to a categorised error.
func WithCode(err *AppError, code Code) *AppError {
	err.Code = code
	return err
}

// Auth returns an AppError carrying an authentication outcome code.
func Auth(code Code, message string) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Code:    code,
		Message: message,
	}
}

// CodeOf extracts the outcome code from err, if it carries one.
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code, true
	}
	return "", false
}
