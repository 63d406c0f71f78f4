package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/matchscraper/internal/analysis"
	"github.com/Vodeneev/matchscraper/internal/pkg/storage"
	"github.com/Vodeneev/matchscraper/internal/scraper"
)

type analyzeOptions struct {
	detailed bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [season-label]",
		Short: "Report how stored best lines settled against final scores",
		Long: `Settles every finished match of a season against its best over/under line.
The season label looks like "germany_2-bundesliga-2024-2025"; without one, the
configured league and season are used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), root, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "list every match")
	return cmd
}

func runAnalyze(parent context.Context, root *rootOptions, opts *analyzeOptions, args []string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, _, _, ctx, cleanup, err := root.setup(parent)
	if err != nil {
		return err
	}
	defer cleanup()

	var season string
	if len(args) == 1 {
		season = args[0]
	} else {
		src := cfg.Source
		season = scraper.League{Sport: src.Sport, Country: src.Country, Code: src.League, Season: src.Season}.
			WithDefaultSeason(time.Now()).
			SeasonLabel()
	}

	repo, err := storage.NewPostgresRepository(ctx, &cfg.Postgres)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	report, err := analysis.Analyze(ctx, repo, season)
	if err != nil {
		return err
	}
	report.Render(os.Stdout, opts.detailed)
	return nil
}
