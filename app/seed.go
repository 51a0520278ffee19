package app

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mdr-platform/settings-service/internal/daemon"
	"github.com/mdr-platform/settings-service/internal/service"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:     "seed",
	Short:   "Create or refresh the default job settings",
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := daemon.NewSettings(cmd.Context(), &cfg)
		if err != nil {
			return err //nolint:wrapcheck
		}

		defer func() {
			if err := settings.Close(cmd.Context()); err != nil {
				log.Error().Err(err).Msg("failed to close the settings store")
			}
		}()

		res, err := settings.Seed(cmd.Context(), service.JobSettings())
		if err != nil {
			return err //nolint:wrapcheck
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded settings: %d created, %d updated\n", res.Created, res.Updated)

		return nil
	},
}
