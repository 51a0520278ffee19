// Package config handles input from etc/*.toml files, .env files and the environment.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides of config keys, e.g. SETTINGS_DB_HOST.
	EnvPrefix = "SETTINGS"

	// EnvJSON holds a JSON document merged over the file configuration.
	EnvJSON = "SETTINGS_SERVICE_CONFIG_JSON"

	// EnvLocal is the environment name of a developer machine.
	EnvLocal = "LOCAL"

	defaultDBName       = "mdr-settings"
	defaultPoolSize     = 100
	defaultPortLocal    = 3007
	defaultPort         = 3000
	defaultShutDownTime = 5
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var c Config

	if path == "" {
		path = "./etc/"
	}

	// a missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(filepath.Join(path, "main.toml"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	applyLegacyEnv(&c)

	// override it from env
	if configAsJSON := os.Getenv(EnvJSON); configAsJSON != "" {
		var err error
		if c, err = decodeAndMergeConfig(c, configAsJSON); err != nil {
			return c, err
		}
	}

	applyDefaults(&c)

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	if err := json.Unmarshal([]byte(configAsJSON), &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode "+EnvJSON)
	}

	return c, nil
}

// applyLegacyEnv honours the MONGO_* and ENV_NAME variables older deployments set.
func applyLegacyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	str("ENV_NAME", &c.EnvName)
	str("MONGO_HOST", &c.DB.Host)
	str("MONGO_NAME", &c.DB.Name)
	str("MONGO_USER", &c.DB.User)
	str("MONGO_PASSWORD", &c.DB.Password)

	if v, err := strconv.Atoi(os.Getenv("MONGO_PORT")); err == nil {
		c.DB.Port = v
	}

	if v, err := strconv.ParseBool(os.Getenv("MONGO_SSL")); err == nil {
		c.DB.SSL = v
	}

	if v, err := strconv.ParseUint(os.Getenv("MONGO_POOL_SIZE"), 10, 64); err == nil {
		c.DB.PoolSize = v
	}
}

func applyDefaults(c *Config) {
	if c.EnvName == "" {
		c.EnvName = EnvLocal
	}

	if c.DB.Engine == "" {
		c.DB.Engine = EngineMongoDB
	}

	if c.DB.Name == "" {
		c.DB.Name = defaultDBName
	}

	if c.DB.PoolSize == 0 {
		c.DB.PoolSize = defaultPoolSize
	}

	if c.Webserver.Port == 0 {
		c.Webserver.Port = defaultPort
		if c.EnvName == EnvLocal {
			c.Webserver.Port = defaultPortLocal
		}
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	var buffer bytes.Buffer

	if err := toml.NewEncoder(&buffer).Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c Config) (string, error) {
	var buffer bytes.Buffer

	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate the settings the service can not start without.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	switch c.DB.Engine {
	case EngineMongoDB, EngineSQLite, EngineMySQL, EnginePostgres:
	default:
		return errors.Wrap(ErrUnknownEngine, invalidErrMessage)
	}

	return nil
}
