package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newExportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the licence register to CSV and print where it was written",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.exportService(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.ExportLicences(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
