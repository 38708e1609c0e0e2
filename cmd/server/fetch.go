package main

import (
	"brainapi/internal/engine"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// newFetchCmd runs one ingestion and prints the projected rows, without
// starting the server. Handy for checking what the upstream returns.
func newFetchCmd(configPath *string) *cobra.Command {
	var arrow bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the upstream dataset once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			records, err := engine.NewClient(cfg.Upstream).Fetch(cmd.Context())
			if err != nil {
				return err
			}

			ds := engine.NewDataset(records)
			if arrow {
				return ds.WriteIPC(cmd.OutOrStdout())
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(engine.RawRows(ds))
		},
	}
	cmd.Flags().BoolVar(&arrow, "arrow", false, "write an Arrow IPC stream instead of JSON")
	return cmd
}
