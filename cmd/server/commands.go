package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safewatch-backend/internal/config"
	"safewatch-backend/internal/repository"
	"safewatch-backend/pkg/database"
	"safewatch-backend/pkg/jwt"
	"safewatch-backend/pkg/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "safewatch",
		Short: "SafeWatch alert service",
		Long: `SafeWatch stores neighbourhood safety alerts reported by residents,
with optional photo or video attachments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newIndexesCmd())
	root.AddCommand(newTokenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

			if cfg.StoreDriver != config.StoreMongo {
				return errors.New("indexes require STORE_DRIVER=mongo")
			}

			ctx, cancel := context.WithTimeout(contextOrBackground(cmd.Context()), time.Minute)
			defer cancel()

			db, err := database.Connect(ctx, cfg.MongoURI)
			if err != nil {
				return err
			}
			defer database.Disconnect(db.Client())

			if err := repository.NewAlertRepository(db).CreateIndexes(ctx); err != nil {
				return err
			}
			log.Info().Msg("alert indexes created")
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			token, err := jwt.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpiry).GenerateToken(userID, email, role)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to embed in the token")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", "user", "role claim")
	return cmd
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
