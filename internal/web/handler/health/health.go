// Package health serves the load balancer check-alive endpoint.
package health

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"github.com/mdr-platform/settings-service/internal/web/handler"
	"github.com/mdr-platform/settings-service/internal/web/response"
)

// Path is the check-alive route.
const Path = handler.RootPath + "healthcheck"

// Service answers check-alive requests.
type Service struct {
	alive *atomic.Bool
}

var _ handler.Service[*atomic.Bool] = (*Service)(nil)

// Init registers the route. alive turns false during a graceful shutdown.
func (s *Service) Init(app *fiber.App, alive *atomic.Bool) error {
	if app == nil || alive == nil {
		return handler.ErrNilDependency
	}

	s.alive = alive

	app.Get(Path, s.Check)

	return nil
}

// Check answers 200 while the service is alive and 503 while it shuts down.
func (s *Service) Check(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return response.Fail(c, fiber.StatusServiceUnavailable, "shutting down", nil)
	}

	return response.OK(c, "Success")
}
