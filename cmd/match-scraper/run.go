package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/matchscraper/internal/normalize"
	"github.com/Vodeneev/matchscraper/internal/orchestrator"
	"github.com/Vodeneev/matchscraper/internal/pkg/browser"
	"github.com/Vodeneev/matchscraper/internal/pkg/export"
	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
	"github.com/Vodeneev/matchscraper/internal/scraper"
)

type runOptions struct {
	sport        string
	country      string
	league       string
	season       string
	outputDir    string
	formats      []string
	skipExisting bool
	progress     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every finished match of one league season",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd.Context(), root, opts, cmd)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.sport, "sport", "", "override source.sport")
	f.StringVar(&opts.country, "country", "", "override source.country")
	f.StringVar(&opts.league, "league", "", "override source.league")
	f.StringVar(&opts.season, "season", "", `override source.season, e.g. "2024-2025"`)
	f.StringVarP(&opts.outputDir, "output", "o", "", "override output.dir")
	f.StringSliceVar(&opts.formats, "format", nil, "override output.formats (json, csv)")
	f.BoolVar(&opts.skipExisting, "skip-existing", false, "skip matches already stored in Postgres")
	f.BoolVar(&opts.progress, "progress", true, "show a progress bar on stderr")
	return cmd
}

func runScrape(parent context.Context, root *rootOptions, opts *runOptions, cmd *cobra.Command) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, runID, ctx, cleanup, err := root.setup(parent)
	if err != nil {
		return err
	}
	defer cleanup()

	src := &cfg.Source
	overrideString(&src.Sport, opts.sport)
	overrideString(&src.Country, opts.country)
	overrideString(&src.League, opts.league)
	overrideString(&src.Season, opts.season)
	overrideString(&cfg.Output.Dir, opts.outputDir)
	if len(opts.formats) > 0 {
		cfg.Output.Formats = opts.formats
	}
	if cmd.Flags().Changed("skip-existing") {
		src.SkipExisting = opts.skipExisting
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	league := scraper.League{Sport: src.Sport, Country: src.Country, Code: src.League, Season: src.Season}.
		WithDefaultSeason(time.Now())
	fileName := league.FileName()
	logger = logger.With("league", fileName)

	a, err := newApp(ctx, cfg, logger, runID, false)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	items, err := a.discover(ctx, league.URL(src.BaseURL))
	if err != nil {
		return fmt.Errorf("work list discovery: %w", err)
	}
	logger.Info("Work list discovered", "matches", len(items))

	if src.SkipExisting && a.repo != nil {
		items = a.withoutStored(ctx, items)
	}

	sinks := make([]orchestrator.RecordSink, 0, 3)
	if a.sink != nil {
		sinks = append(sinks, a.sink)
	}
	for _, format := range cfg.Output.Formats {
		switch format {
		case "json":
			sinks = append(sinks, export.NewJSONSink(cfg.Output.Dir, fileName, logger))
		case "csv":
			sinks = append(sinks, export.NewCSVSink(cfg.Output.Dir, fileName, logger))
		}
	}

	store, closeStore, err := a.checkpointStore(ctx, fileName)
	if err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}
	defer closeStore()

	normalizer := normalize.New(normalize.Options{
		Sport:    src.Sport,
		Nation:   src.Country,
		League:   src.League,
		Season:   league.SeasonLabel(),
		Location: a.loc,
	})

	orch := a.orchestrator(fileName, store, sinks, normalizer, opts.progress)
	a.serveHealth(ctx, orch)

	res, err := orch.Run(ctx, items)
	logger.Info("Run finished",
		"completed", res.Completed,
		"interrupted", res.Interrupted,
		"succeeded", res.Succeeded,
		"skipped", res.Skipped,
		"recycles", res.Recycles)
	if res.Interrupted {
		// A resumable stop, not a failure.
		return nil
	}
	return err
}

// discover reads the season work list, relaunching the session once if the
// browser itself failed.
func (a *app) discover(ctx context.Context, seasonURL string) ([]models.WorkItem, error) {
	items, err := a.scraper.DiscoverWorkList(ctx, seasonURL)
	if err == nil || ctx.Err() != nil || failure.Classify(err) != failure.KindFatalSession {
		return items, err
	}
	a.logger.Warn("Work list discovery hit a browser failure, recycling", "error", err)
	if rerr := a.session.Recycle(ctx, browser.ReasonFatal); rerr != nil {
		return nil, fmt.Errorf("%w (recycle: %v)", err, rerr)
	}
	return a.scraper.DiscoverWorkList(ctx, seasonURL)
}

// withoutStored drops items already in the matches table. A failed lookup keeps every item.
func (a *app) withoutStored(ctx context.Context, items []models.WorkItem) []models.WorkItem {
	existing, err := a.repo.ExistingMatchIDs(ctx)
	if err != nil {
		a.logger.Warn("Could not load stored match ids, processing all", "error", err)
		return items
	}
	kept := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if _, ok := existing[item.ID]; ok {
			continue
		}
		item.Index = len(kept)
		kept = append(kept, item)
	}
	a.logger.Info("Skipping stored matches", "stored", len(items)-len(kept), "remaining", len(kept))
	return kept
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
