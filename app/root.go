// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/mdr-platform/settings-service/internal/config"
	"github.com/mdr-platform/settings-service/internal/logger"
)

var (
	configPath string // Path to the configuration directory
	devMode    bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "settings-service",
	Short: "Settings service of the MDR platform",
	Long: `Settings service of the MDR platform.
It stores named configuration records and serves them over a REST API,
filtered by the caller's admin status and deployment environment.`,
	Args:          cobra.OnlyValidArgs,
	SilenceUsage:  true,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "directory holding main.toml")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Enable dev mode")
}

// loadConfig reads the configuration and initializes the global logger.
func loadConfig(_ *cobra.Command, _ []string) error {
	var err error

	if cfg, err = config.ReadConfig(configPath); err != nil {
		return err //nolint:wrapcheck
	}

	if devMode {
		cfg.DevMode = true
	}

	return logger.Init(cfg.Log) //nolint:wrapcheck
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute() //nolint:wrapcheck
}
