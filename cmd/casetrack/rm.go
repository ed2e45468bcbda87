package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"casetrack/internal/api"
	"casetrack/internal/config"
)

func newRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a case and its stored files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("deleting a case also deletes its files; re-run with --force")
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.DeleteCase(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writePlain("deleted %s\n", args[0]); err != nil {
					return err
				}
				for _, warning := range resp.Warnings {
					if err := writePlain("warning: %s\n", warning); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
