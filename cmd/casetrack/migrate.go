package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"casetrack/internal/config"
	"casetrack/internal/store"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and show the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil || cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			// Open applies pending migrations.
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			status, err := st.MigrationStatus()
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(status)
			}
			return writePlain("schema version %d of %d\n", status.CurrentVersion, status.AvailableVersion)
		},
	}
}
