package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/matchscraper/internal/normalize"
	"github.com/Vodeneev/matchscraper/internal/orchestrator"
	"github.com/Vodeneev/matchscraper/internal/pkg/checkpoint"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

type backfillOptions struct {
	limit    int
	progress bool
}

func newBackfillCmd(root *rootOptions) *cobra.Command {
	opts := &backfillOptions{}
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-collect stored matches whose status or best line is missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackfill(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "maximum number of matches to re-collect")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "show a progress bar on stderr")
	return cmd
}

func runBackfill(parent context.Context, root *rootOptions, opts *backfillOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, runID, ctx, cleanup, err := root.setup(parent)
	if err != nil {
		return err
	}
	defer cleanup()
	logger = logger.With("command", "backfill")

	a, err := newApp(ctx, cfg, logger, runID, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	missing, err := a.repo.MatchesMissingData(ctx, opts.limit)
	if err != nil {
		return fmt.Errorf("load matches missing data: %w", err)
	}
	if len(missing) == 0 {
		logger.Info("No matches need backfilling")
		return nil
	}

	items := make([]models.WorkItem, len(missing))
	for i, m := range missing {
		items[i] = models.WorkItem{ID: m.ID, Index: i}
	}
	logger.Info("Backfilling matches", "matches", len(items))

	// Season, nation and league stay empty so the stored values are kept.
	normalizer := normalize.New(normalize.Options{Location: a.loc})
	orch := a.orchestrator("backfill", checkpoint.Nop{}, []orchestrator.RecordSink{a.sink}, normalizer, opts.progress)
	a.serveHealth(ctx, orch)

	res, err := orch.Run(ctx, items)
	logger.Info("Backfill finished",
		"succeeded", res.Succeeded,
		"skipped", res.Skipped,
		"recycles", res.Recycles,
		"saved", a.sink.Stats().Saved)
	if res.Interrupted {
		return nil
	}
	return err
}
