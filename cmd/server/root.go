package main

import (
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "caz-register",
		Short:         "Taxi and PHV licence register service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newExportCmd(&configPath),
	)
	return root
}
