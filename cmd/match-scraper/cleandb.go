package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/matchscraper/internal/pkg/storage"
)

type cleanDBOptions struct {
	tables []string
	yes    bool
}

func newCleanDBCmd(root *rootOptions) *cobra.Command {
	opts := &cleanDBOptions{}
	cmd := &cobra.Command{
		Use:   "clean-db",
		Short: "Truncate scraper tables in PostgreSQL",
		Long: `Empties the scraper tables to free space or start a league from scratch.
Uses postgres.dsn from the config or POSTGRES_DSN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanDB(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.tables, "tables", storage.CleanableTables, "tables to truncate")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "confirm truncation")
	return cmd
}

func runCleanDB(parent context.Context, root *rootOptions, opts *cleanDBOptions) error {
	if !opts.yes {
		return fmt.Errorf("refusing to truncate %v without --yes", opts.tables)
	}
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, _, ctx, cleanup, err := root.setup(parent)
	if err != nil {
		return err
	}
	defer cleanup()

	repo, err := storage.NewPostgresRepository(ctx, &cfg.Postgres)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	if err := repo.Truncate(ctx, opts.tables...); err != nil {
		return err
	}
	logger.Info("Done. Scraper tables cleared.", "tables", opts.tables)
	return nil
}
