package commands

import (
	"github.com/spf13/cobra"

	"github.com/bowerhall/tourcam/internal/config"
	"github.com/bowerhall/tourcam/internal/logger"
)

var cfg *config.Config

func Execute() error {
	root := &cobra.Command{
		Use:           "tourcam",
		Short:         "Guided panorama capture for property listings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded

			logger.Debug("config loaded",
				"profile", cfg.ProfilePath,
				"storage", cfg.Storage.Enabled,
				"ledger", cfg.Ledger.Path)
			return nil
		},
	}

	root.AddCommand(captureCmd(), publishCmd(), ledgerCmd())
	return root.Execute()
}
