// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mdr-platform/settings-service/internal/apperror"
	"github.com/mdr-platform/settings-service/internal/logger"
)

const (
	// Version is reported in every envelope.
	Version = "1.0.0.0"

	// MessageSuccess is the message of every 200 response.
	MessageSuccess = "Request successful"

	component = "ErrorHandler"
)

// Envelope wraps every response body. Result is null on failure.
type Envelope struct {
	StatusCode       int                   `json:"statusCode"`
	Version          string                `json:"version"`
	Message          string                `json:"message"`
	Result           any                   `json:"result"`
	ValidationErrors []apperror.FieldError `json:"validationErrors,omitempty"`
}

// Paged is the result of a paged lookup.
type Paged struct {
	Records    any   `json:"records"`
	TotalCount int64 `json:"totalCount"`
}

// OK writes a 200 envelope around result.
func OK(c *fiber.Ctx, result any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{
		StatusCode: fiber.StatusOK,
		Version:    Version,
		Message:    MessageSuccess,
		Result:     result,
	})
}

// Fail writes a failure envelope.
func Fail(c *fiber.Ctx, status int, message string, fieldErrors []apperror.FieldError) error {
	return c.Status(status).JSON(Envelope{
		StatusCode:       status,
		Version:          Version,
		Message:          message,
		ValidationErrors: fieldErrors,
	})
}

// ErrorHandler is the fiber error handler. Application errors keep their status,
// fiber errors their code, anything else is a 500 carrying the error message.
// Stacks go to the server log only.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		status      = fiber.StatusInternalServerError
		message     = err.Error()
		fieldErrors []apperror.FieldError
		fiberErr    *fiber.Error
	)

	if appErr, ok := apperror.As(err); ok {
		status = appErr.HTTPStatus
		message = appErr.Message
		fieldErrors = appErr.FieldErrors
	} else if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}

	l := logger.FromContext(c.UserContext(), component)

	var event *zerolog.Event
	if status >= fiber.StatusInternalServerError {
		event = l.Error().Stack()
	} else {
		event = l.Warn()
	}

	event.Err(err).
		Int("status", status).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("request failed")

	return Fail(c, status, message, fieldErrors)
}
