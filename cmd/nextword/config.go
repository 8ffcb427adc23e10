package main

import (
	"fmt"

	"github.com/bastiangx/nextword/pkg/config"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or reset the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetActiveConfigPath(a.activeConfig))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Overwrite the default config file with built-in defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RebuildConfigFile(); err != nil {
				return fmt.Errorf("rebuilding config: %w", err)
			}
			path, err := config.GetDefaultConfigPath()
			if err != nil {
				return err
			}
			log.Infof("Rebuilt %s", path)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}
