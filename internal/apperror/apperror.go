// Package apperror carries the typed failures the REST layer maps to status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// Field error kinds.
const (
	KindRequired = "required"
	KindUnique   = "unique"
	KindEnum     = "enum"
	KindCast     = "cast"
	KindInvalid  = "invalid"
)

// FieldError describes a field-level validation failure.
type FieldError struct {
	Field     string `json:"field"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	Value     any    `json:"value,omitempty"`
}

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is the human-readable message returned to the caller.
	Message string `json:"message"`

	// HTTPStatus is the corresponding HTTP status code.
	HTTPStatus int `json:"-"`

	// FieldErrors carries field-level validation details.
	FieldErrors []FieldError `json:"validationErrors,omitempty"`

	// Err is the wrapped underlying error. It is logged, never returned to callers.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap wraps an existing error into an AppError.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// WithFieldErrors attaches field-level errors.
func (e *AppError) WithFieldErrors(fieldErrors ...FieldError) *AppError {
	if e == nil || len(fieldErrors) == 0 {
		return e
	}

	e.FieldErrors = append(e.FieldErrors, fieldErrors...)

	return e
}

// Validation creates a 400 error.
func Validation(message string, fieldErrors ...FieldError) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest).WithFieldErrors(fieldErrors...)
}

// NotFound creates a 404 error.
func NotFound(message string) *AppError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Internal creates a 500 error keeping err for the server log.
func Internal(err error) *AppError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}

	return Wrap(err, CodeInternal, msg, http.StatusInternalServerError)
}

// As extracts an AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}

	return nil, false
}

// Status returns the HTTP status for err, 500 for anything that is not an AppError.
func Status(err error) int {
	if appErr, ok := As(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}

	return http.StatusInternalServerError
}
