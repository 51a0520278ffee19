// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/mdr-platform/settings-service/internal/config"
)

// Mongo builds the MongoDB connection string.
// Deployed environments use an SRV record, a LOCAL environment a plain host and port.
func Mongo(cfg *config.Config) string {
	if cfg.DB.URI != "" {
		return cfg.DB.URI
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   cfg.DB.Host,
		Path:   "/" + cfg.DB.Name,
	}

	if cfg.DB.User != "" {
		u.User = url.UserPassword(cfg.DB.User, cfg.DB.Password)
	}

	q := url.Values{}

	if cfg.EnvName != "" && cfg.EnvName != config.EnvLocal {
		u.Scheme = "mongodb+srv"
		q.Set("retryWrites", "true")
	} else {
		if cfg.DB.Port != 0 {
			u.Host = fmt.Sprintf("%s:%d", cfg.DB.Host, cfg.DB.Port)
		}

		q.Set("ssl", strconv.FormatBool(cfg.DB.SSL))
	}

	if cfg.DB.User != "" {
		q.Set("authSource", "admin")
	}

	u.RawQuery = q.Encode()

	return u.String()
}

// MySQL builds the go-sql-driver/mysql Data Source Name.
func MySQL(cfg *config.Config) string {
	if cfg.DB.URI != "" {
		return cfg.DB.URI
	}

	out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
	)

	if cfg.DB.Extras != "" {
		out += "?" + cfg.DB.Extras
	}

	return out
}

// Postgres builds a pgx keyword/value connection string.
func Postgres(cfg *config.Config) string {
	if cfg.DB.URI != "" {
		return cfg.DB.URI
	}

	sslMode := "disable"
	if cfg.DB.SSL {
		sslMode = "require"
	}

	out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Name,
		sslMode,
	)

	if cfg.DB.Extras != "" {
		out += " " + cfg.DB.Extras
	}

	return out
}

// SQLite returns the database file, the database name when no URI is set.
func SQLite(cfg *config.Config) string {
	if cfg.DB.URI != "" {
		return cfg.DB.URI
	}

	return cfg.DB.Name + ".db"
}
