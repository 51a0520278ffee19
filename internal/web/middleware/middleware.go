// Package middleware holds the fiber middleware shared by every route.
package middleware

import (
	"path"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/mdr-platform/settings-service/internal/logger"
)

// CorrelationIDHeader carries the id that ties log lines of one request together.
const CorrelationIDHeader = "X-Correlation-Id"

// RequestID echoes the caller's correlation id or generates one.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     CorrelationIDHeader,
		Generator:  uuid.NewString,
		ContextKey: logger.FieldCorrelationID,
	})
}

// Correlation stores the correlation id in the request's user context.
// It must run after RequestID.
func Correlation(c *fiber.Ctx) error {
	c.SetUserContext(logger.NewContext(c.UserContext(), c.GetRespHeader(CorrelationIDHeader)))

	return c.Next()
}

// CleanPath routes //settings//stats/ like /settings/stats.
func CleanPath(c *fiber.Ctx) error {
	p := c.Path()

	if cleaned := path.Clean(p); cleaned != p {
		c.Path(cleaned)
	}

	return c.Next()
}
