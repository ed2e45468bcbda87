package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"casetrack/internal/auth"
	"casetrack/internal/blobstore"
	"casetrack/internal/config"
	"casetrack/internal/server"
	"casetrack/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the casetrack API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			authenticator, err := auth.NewFixedCredential(cfg.Auth.Email, cfg.Auth.PasswordHash)
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.SessionTTL())
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			blobs, err := buildBlobStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			srv := server.New(addr, st, blobs, serverOptions(cfg, authenticator, tokens, logger))
			return srv.ListenAndServe()
		},
	}
}

func serverOptions(cfg *config.Config, authenticator auth.Authenticator, tokens *auth.TokenManager, logger *slog.Logger) server.Options {
	return server.Options{
		Authenticator: authenticator,
		Tokens:        tokens,
		UploadLimits: server.UploadLimits{
			MaxFileBytes: cfg.Uploads.MaxFileBytes,
			MaxFiles:     cfg.Uploads.MaxFiles,
		},
		MultipartMaxMemory: cfg.Uploads.MultipartMaxMemory,
		IDPrefix:           cfg.IDPrefix,
		StorageBackend:     cfg.Storage.Backend,
		Version:            version,
		LoginMaxFailures:   cfg.LoginLimit.MaxFailures,
		LoginWindow:        cfg.LoginLimit.FailureWindow(),
		LoginBlockFor:      cfg.LoginLimit.BlockDuration(),
		Logger:             logger,
	}
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		root := cfg.BlobRoot()
		if root == "" {
			return nil, fmt.Errorf("blob root is required for the local backend")
		}
		return blobstore.NewLocal(root)
	case "s3":
		return blobstore.NewS3(ctx, blobstore.S3Options{
			Bucket:          cfg.Storage.S3Bucket,
			Region:          cfg.Storage.S3Region,
			Endpoint:        cfg.Storage.S3Endpoint,
			KeyPrefix:       cfg.Storage.S3KeyPrefix,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
