package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"casetrack/internal/config"
	"casetrack/internal/server"
	"casetrack/internal/store"
)

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		dryRun    bool
		createdBy string
	)

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk-create cases from a YAML file",
		Long:  "Reads case records from a YAML document and creates the new ones. Existing ids are skipped. Runs against the local database, not the API.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openLocalService(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := svc.ImportCases(cmd.Context(), f, createdBy, dryRun)
			if err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(map[string]any{
					"dry_run": dryRun,
					"created": result.Created,
					"skipped": result.Skipped,
					"ids":     result.IDs,
				})
			}
			label := "created"
			if dryRun {
				label = "would create"
			}
			return writePlain("%s %d case(s), skipped %d\n", label, result.Created, result.Skipped)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	cmd.Flags().StringVar(&createdBy, "created-by", "import", "creator recorded on imported cases")
	return cmd
}

// openLocalService builds a CaseService on the local database and blob
// store for commands that bypass the API.
func openLocalService(cmd *cobra.Command, cfg *config.Config) (*server.CaseService, func(), error) {
	if cfg == nil || cfg.DBPath == "" {
		return nil, nil, fmt.Errorf("db path is required")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := buildBlobStore(cmd.Context(), cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	svc := server.NewCaseService(st, blobs, server.UploadLimits{
		MaxFileBytes: cfg.Uploads.MaxFileBytes,
		MaxFiles:     cfg.Uploads.MaxFiles,
	}, cfg.IDPrefix, slog.Default())

	return svc, func() { st.Close() }, nil
}
