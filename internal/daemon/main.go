// Package daemon wires the store, the cache, the settings service and the web server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mdr-platform/settings-service/internal/cache"
	"github.com/mdr-platform/settings-service/internal/config"
	"github.com/mdr-platform/settings-service/internal/db/store"
	"github.com/mdr-platform/settings-service/internal/service"
	"github.com/mdr-platform/settings-service/internal/web"
)

// ErrConfigNil is returned when no configuration is passed.
var ErrConfigNil = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	settings   *service.Settings
	webService *web.Service
}

// Start serves until SIGINT or SIGTERM, then releases the store.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	err := d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))

	if closeErr := d.settings.Close(context.Background()); closeErr != nil {
		log.Error().Err(closeErr).Msg("failed to close the settings store")
	}

	return err
}

// Settings returns the settings service.
func (d *Daemon) Settings() *service.Settings {
	return d.settings
}

// Web returns the web service.
func (d *Daemon) Web() *web.Service {
	return d.webService
}

// NewSettings opens the configured store and cache and returns the service on top of them.
func NewSettings(ctx context.Context, cfg *config.Config) (*service.Settings, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithAdminEnforcement(cfg.Security.EnforceAdminMutations),
	}

	if cfg.Cache.Enabled {
		c, err := cache.NewRedis(ctx, cache.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.Prefix,
			TTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		})
		if err != nil {
			_ = st.Close(ctx)

			return nil, err //nolint:wrapcheck
		}

		opts = append(opts, service.WithCache(c))
	}

	settings, err := service.NewSettings(store.Instrument(st, cfg.DB.Engine), opts...)
	if err != nil {
		_ = st.Close(ctx)

		return nil, err //nolint:wrapcheck
	}

	log.Info().
		Str("engine", cfg.DB.Engine).
		Bool("cache", cfg.Cache.Enabled).
		Bool("enforceAdmin", cfg.Security.EnforceAdminMutations).
		Msg("settings store ready")

	return settings, nil
}

// New creates a new Daemon instance with the provided configuration.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	settings, err := NewSettings(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Seed.OnStart {
		if _, err := settings.Seed(ctx, service.JobSettings()); err != nil {
			_ = settings.Close(ctx)

			return nil, pkgerrors.Wrap(err, "failed to seed settings")
		}
	}

	webService, err := web.New(cfg, settings)
	if err != nil {
		_ = settings.Close(ctx)

		return nil, err //nolint:wrapcheck
	}

	return &Daemon{
		cfg:        cfg,
		settings:   settings,
		webService: webService,
	}, nil
}
