package main

import (
	"github.com/spf13/cobra"

	"casetrack/internal/api"
	"casetrack/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				cases, err := client.ListCases(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(cases)
				}
				return writeCaseList(cases)
			})
		},
	}
}
