package config

import (
	"github.com/mdr-platform/settings-service/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool   // enable dev mode for development
	Title     string // service title, used by the API description
	EnvName   string // deployment environment name, LOCAL for a developer machine
	DB        DB
	Cache     Cache
	Log       logger.Log
	Webserver Webserver
	Security  Security
	Seed      Seed
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool   // use clean path middleware to allow multi slash requests
	DisableRecover bool   // disable recover middleware
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown in seconds
	URL            string // public base url, advertised in the API description
	BodyLimit      int    // max request body size in bytes, 0 keeps the fiber default
}

// Cache configures the optional redis name lookup cache.
type Cache struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      int // seconds
}

// Security holds the access control switches.
type Security struct {
	// EnforceAdminMutations rejects mutations from callers not asserting isAdmin=true.
	EnforceAdminMutations bool
}

// Seed controls the default settings seeding.
type Seed struct {
	OnStart bool // seed the job settings when the service starts
}
