package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aradsms/mock_provider/internal/platform/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (provider=%s, database=%s, listen=%s)\n",
				cfg.Provider, cfg.Database.Driver, cfg.Server.Addr())
			return nil
		},
	})
	return cmd
}
