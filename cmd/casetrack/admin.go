package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"casetrack/internal/auth"
	"casetrack/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative maintenance commands",
	}

	cmd.AddCommand(newAdminSweepCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminHashPasswordCmd())
	return cmd
}

func newAdminSweepCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Find and optionally delete blobs no case references",
		Long:  "Scans the blob store for files no case references. Failed update cleanups and interrupted creates leave such orphans behind. Without --apply the sweep only reports.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openLocalService(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.SweepOrphans(cmd.Context(), apply)
			if err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(report)
			}
			if err := writePlain("scanned %d blob(s), %d referenced, %d orphan(s)\n",
				report.BlobsScanned, report.Referenced, len(report.Orphans)); err != nil {
				return err
			}
			for _, key := range report.Orphans {
				if err := writePlain("orphan: %s\n", key); err != nil {
					return err
				}
			}
			if apply {
				return writePlain("deleted %d orphan(s)\n", report.Deleted)
			}
			if len(report.Orphans) > 0 {
				return writePlain("re-run with --apply to delete\n")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete the orphans found")
	return cmd
}

func newAdminHashPasswordCmd() *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for the auth config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			password := strings.TrimSpace(string(raw))
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			return writePlain("%s\n", hash)
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	return cmd
}
