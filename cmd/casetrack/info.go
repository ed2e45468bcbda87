package main

import (
	"github.com/spf13/cobra"

	"casetrack/internal/api"
	"casetrack/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server and storage details",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnonClient(cfg, func(client *api.Client) error {
				info, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(info)
				}
				if err := writePlain("version: %s\n", info.Version); err != nil {
					return err
				}
				if err := writePlain("storage_backend: %s\n", info.StorageBackend); err != nil {
					return err
				}
				return writePlain("cases: %d\n", info.CaseCount)
			})
		},
	}
}
