package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Service is the interface for a web handler service registering its routes on app.
type Service[D any] interface {
	Init(app *fiber.App, deps D) error
}
