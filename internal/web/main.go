// Package web builds the fiber application serving the settings API.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mdr-platform/settings-service/internal/config"
	fiberlogger "github.com/mdr-platform/settings-service/internal/logger/adapter/fiber"
	"github.com/mdr-platform/settings-service/internal/service"
	"github.com/mdr-platform/settings-service/internal/web/handler/health"
	"github.com/mdr-platform/settings-service/internal/web/handler/openapi"
	"github.com/mdr-platform/settings-service/internal/web/handler/setting"
	"github.com/mdr-platform/settings-service/internal/web/middleware"
	"github.com/mdr-platform/settings-service/internal/web/response"
)

// MetricsPath serves the prometheus metrics.
const MetricsPath = "/metrics"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address and blocks until it stops.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the server down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown fails the health check for ShutDownTime seconds, then stops the server.
func (s *Service) Shutdown() {
	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	s.alive.Store(false)

	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// Alive reports whether the health check passes.
func (s *Service) Alive() bool {
	return s.alive.Load()
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, settings *service.Settings) (*Service, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if settings == nil {
		return nil, ErrServiceNil
	}

	fiberCfg := fiber.Config{
		ReadBufferSize: 8192,
		AppName:        cfg.Title,
		CaseSensitive:  true,
		Prefork:        false,
		Immutable:      true,
		ErrorHandler:   response.ErrorHandler,
	}

	if cfg.Webserver.BodyLimit > 0 {
		fiberCfg.BodyLimit = cfg.Webserver.BodyLimit
	}

	app := fiber.New(fiberCfg)

	// correlation id first so the access log and every handler see it
	app.Use(middleware.RequestID())

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:              cfg.Log,
		CheckAliveURI:       health.Path,
		CorrelationIDHeader: middleware.CorrelationIDHeader,
		UserIDHeader:        setting.HeaderUserID,
	}))

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New(recover.Config{EnableStackTrace: cfg.DevMode}))
	}

	if cfg.Webserver.CleanPath {
		app.Use(middleware.CleanPath)
	}

	app.Use(middleware.Correlation)

	ws := &Service{
		App:          app,
		cfg:          cfg,
		fastShutDown: cfg.DevMode,
	}
	ws.alive.Store(true)

	// init handlers (they register their own routes)
	if err := new(health.Service).Init(app, &ws.alive); err != nil {
		return nil, err
	}

	if err := new(openapi.Service).Init(app, openapi.Options{ServerURL: cfg.Webserver.URL, Title: cfg.Title}); err != nil {
		return nil, err
	}

	if err := new(setting.Service).Init(app, settings); err != nil {
		return nil, err
	}

	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	return ws, nil
}
