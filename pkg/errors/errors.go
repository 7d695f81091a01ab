package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with a stable code and an
// HTTP status code. Every member of the taxonomy is an expected,
// caller-recoverable outcome except INTERNAL_ERROR.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code, so errors.Is(err, ErrConflict) works on
// wrapped and re-messaged instances alike.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Outcome constructors, one per taxonomy member.

// Unauthenticated - no or invalid identity (401)
func Unauthenticated(message string, err error) *AppError {
	return &AppError{Code: "UNAUTHENTICATED", Message: message, Status: http.StatusUnauthorized, Err: err}
}

// AccountBlocked - identity is valid but the account is suspended (403)
func AccountBlocked(message string) *AppError {
	return &AppError{Code: "ACCOUNT_BLOCKED", Message: message, Status: http.StatusForbidden}
}

// Forbidden - authorization denial, wrong role or not the owner (403)
func Forbidden(message string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: message, Status: http.StatusForbidden}
}

// NotFound - unknown resource id (404)
func NotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

// Validation - malformed input (400)
func Validation(message string, err error) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, Status: http.StatusBadRequest, Err: err}
}

// InvalidTransition - action not legal from the current state, decided
// before any write (422)
func InvalidTransition(message string) *AppError {
	return &AppError{Code: "INVALID_TRANSITION", Message: message, Status: http.StatusUnprocessableEntity}
}

// Conflict - lost race on a conditional write: the transition was legal
// at read time but the state changed before the write landed (409).
// Distinct from Internal; a caller retrying after Conflict will observe
// the record's new state.
func Conflict(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Status: http.StatusConflict}
}

// Internal - genuine fault, always logged, never conflated with Conflict (500)
func Internal(message string, err error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError, Err: err}
}

// Sentinels for errors.Is checks at call sites.
var (
	ErrUnauthenticated   = Unauthenticated("unauthenticated", nil)
	ErrAccountBlocked    = AccountBlocked("account blocked")
	ErrForbidden         = Forbidden("forbidden")
	ErrNotFound          = NotFound("not found")
	ErrValidation        = Validation("validation error", nil)
	ErrInvalidTransition = InvalidTransition("invalid transition")
	ErrConflict          = Conflict("conflict")
	ErrInternal          = Internal("internal error", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError, falling back to
// a generic internal error so handlers never leak raw failures.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
