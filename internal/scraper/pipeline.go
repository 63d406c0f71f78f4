// Package scraper extracts raw match fragments from the rendered source pages:
// the season work list, and per match the summary, statistics and odds views.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/Vodeneev/matchscraper/internal/pkg/browser"
	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
	"github.com/Vodeneev/matchscraper/internal/pkg/retry"
)

// Stage names, as reported to the StageObserver and used in error messages.
const (
	StageWorkList   = "work_list"
	StageSummary    = "summary"
	StageStatistics = "statistics"
	StageOdds       = "odds"
)

// Config holds the timeouts and retry budgets of the pipeline.
type Config struct {
	BaseURL string

	NavigationTimeout time.Duration
	ContentTimeout    time.Duration
	TimelineTimeout   time.Duration
	StatisticsTimeout time.Duration
	SummarySettle     time.Duration
	OddsSettle        time.Duration
	ShowMoreTimeout   time.Duration
	ShowMoreSettle    time.Duration

	ItemAttempts  int
	ItemDelay     time.Duration
	StageAttempts int
	StageDelay    time.Duration

	// MinNavigationInterval spaces out page loads; zero disables pacing.
	MinNavigationInterval time.Duration
}

// DefaultConfig returns the timings the source is known to tolerate.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://www.flashscore.com",
		NavigationTimeout: 30 * time.Second,
		ContentTimeout:    30 * time.Second,
		TimelineTimeout:   5 * time.Second,
		StatisticsTimeout: 15 * time.Second,
		SummarySettle:     2 * time.Second,
		OddsSettle:        5 * time.Second,
		ShowMoreTimeout:   10 * time.Second,
		ShowMoreSettle:    3 * time.Second,
		ItemAttempts:      2,
		ItemDelay:         5 * time.Second,
		StageAttempts:     2,
		StageDelay:        2 * time.Second,
	}
}

// PageSource hands out pages on the current browser session.
type PageSource interface {
	NewPage(ctx context.Context) (browser.Page, error)
}

// StageObserver is told how long each stage took and how it ended.
type StageObserver func(itemID, stage string, took time.Duration, err error)

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithResolvers replaces the timeline side resolvers.
func WithResolvers(chain ResolverChain) Option {
	return func(p *Pipeline) { p.resolvers = chain }
}

// WithStageObserver registers a stage timing callback.
func WithStageObserver(fn StageObserver) Option {
	return func(p *Pipeline) { p.observe = fn }
}

// WithSleep replaces the pause used between retries and after clicks.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// Pipeline runs the extraction stages for one work item at a time.
type Pipeline struct {
	cfg       Config
	pages     PageSource
	logger    *slog.Logger
	limiter   *rate.Limiter
	resolvers ResolverChain
	observe   StageObserver
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline drawing pages from pages.
func NewPipeline(cfg Config, pages PageSource, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.MinNavigationInterval > 0 {
		limit = rate.Every(cfg.MinNavigationInterval)
	}
	p := &Pipeline{
		cfg:       cfg,
		pages:     pages,
		logger:    logger,
		limiter:   rate.NewLimiter(limit, 1),
		resolvers: DefaultResolvers(),
		sleep:     retry.SleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DiscoverWorkList opens the season's results page, expands it once and
// returns the match ids in page order.
func (p *Pipeline) DiscoverWorkList(ctx context.Context, seasonURL string) ([]models.WorkItem, error) {
	policy := p.policy(StageWorkList, p.cfg.ItemAttempts, p.cfg.ItemDelay, p.logger)
	items, res := retry.Value(ctx, policy, func(ctx context.Context, _ int) ([]models.WorkItem, error) {
		return p.discoverOnce(ctx, seasonURL)
	})
	if res.Err != nil {
		return nil, fmt.Errorf("discover work list after %d attempts: %w", res.Attempts, res.Err)
	}
	return items, nil
}

func (p *Pipeline) discoverOnce(ctx context.Context, seasonURL string) (items []models.WorkItem, err error) {
	page, err := p.pages.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer p.closePage(ctx, page, "")

	url := ResultsURL(seasonURL)
	if err := p.navigate(ctx, page, url, browser.WaitPolicy{Timeout: p.cfg.NavigationTimeout}); err != nil {
		return nil, err
	}

	if err := page.Click(ctx, showMoreSelector, p.cfg.ShowMoreTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Debug("No show-more control on results page", "url", url, "error", err)
	} else if err := p.sleep(ctx, p.cfg.ShowMoreSettle); err != nil {
		return nil, err
	}

	if err := page.WaitForContent(ctx, resultRowSelector, p.cfg.ContentTimeout); err != nil {
		return nil, err
	}
	doc, err := p.document(ctx, page)
	if err != nil {
		return nil, err
	}
	items = parseWorkList(doc)
	if len(items) == 0 {
		return nil, errors.New("results page has no match rows")
	}
	return items, nil
}

// Extract runs the summary, statistics and odds stages for item. The whole
// sequence is retried as a unit when a stage gives up.
func (p *Pipeline) Extract(ctx context.Context, item models.WorkItem) (*models.RawFragmentBundle, error) {
	logger := p.logger.With("item_id", item.ID)
	policy := p.policy("extract", p.cfg.ItemAttempts, p.cfg.ItemDelay, logger)
	bundle, res := retry.Value(ctx, policy, func(ctx context.Context, _ int) (*models.RawFragmentBundle, error) {
		return p.extractOnce(ctx, item, logger)
	})
	if res.Err != nil {
		return nil, fmt.Errorf("extract %s after %d attempts: %w", item.ID, res.Attempts, res.Err)
	}
	return bundle, nil
}

func (p *Pipeline) extractOnce(ctx context.Context, item models.WorkItem, logger *slog.Logger) (*models.RawFragmentBundle, error) {
	page, err := p.pages.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer p.closePage(ctx, page, item.ID)

	bundle := &models.RawFragmentBundle{ItemID: item.ID}

	if err := p.stage(ctx, item.ID, StageSummary, logger, func(ctx context.Context) error {
		return p.summary(ctx, page, item, bundle, logger)
	}); err != nil {
		return nil, err
	}

	if err := p.stage(ctx, item.ID, StageStatistics, logger, func(ctx context.Context) error {
		return p.statistics(ctx, page, item, bundle)
	}); err != nil {
		return nil, err
	}

	if err := p.odds(ctx, page, item, bundle, logger); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (p *Pipeline) summary(ctx context.Context, page browser.Page, item models.WorkItem, bundle *models.RawFragmentBundle, logger *slog.Logger) error {
	wait := browser.WaitPolicy{Timeout: p.cfg.NavigationTimeout, Settle: p.cfg.SummarySettle}
	if err := p.navigate(ctx, page, SummaryURL(p.cfg.BaseURL, item.ID), wait); err != nil {
		return err
	}
	if err := page.WaitForContent(ctx, summaryReadySelector, p.cfg.ContentTimeout); err != nil {
		return err
	}
	// Matches without incidents never render the timeline.
	if err := page.WaitForContent(ctx, timelineSelector, p.cfg.TimelineTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Debug("Timeline not rendered", "error", err)
	}

	link, err := page.URL(ctx)
	if err != nil {
		return err
	}
	doc, err := p.document(ctx, page)
	if err != nil {
		return err
	}

	frag := parseSummary(doc)
	p.resolveSides(ctx, page, &frag, logger)
	homeID, awayID := TeamIDs(link)

	bundle.Link = link
	bundle.Stage = frag.Stage
	bundle.Date = frag.Date
	bundle.Status = frag.Status
	bundle.Home = models.RawTeam{ID: homeID, Name: frag.HomeName}
	bundle.Away = models.RawTeam{ID: awayID, Name: frag.AwayName}
	bundle.Score = frag.Score
	bundle.TimelineText = frag.TimelineText
	bundle.Incidents = frag.Incidents
	return nil
}

// resolveSides runs the resolver chain over the timeline. Layout is read from
// the page at most once, and only if some resolver asks for it.
func (p *Pipeline) resolveSides(ctx context.Context, page browser.Page, frag *summaryFragment, logger *slog.Logger) {
	var (
		loaded    bool
		boxes     []browser.Box
		container browser.Box
	)
	load := func() {
		if loaded {
			return
		}
		loaded = true
		containers, err := page.Boxes(ctx, timelineSelector)
		if err != nil || len(containers) == 0 {
			logger.Debug("Timeline layout unavailable", "error", err)
			return
		}
		if boxes, err = page.Boxes(ctx, timelineIncidentBoxes); err != nil {
			logger.Debug("Incident layout unavailable", "error", err)
			boxes = nil
			return
		}
		container = containers[0]
	}

	positional := 0
	for i, node := range frag.incidents {
		idx := i
		side, source := p.resolvers.Resolve(Incident{
			Node:  node,
			Index: idx,
			Layout: func() (browser.Box, browser.Box, bool) {
				load()
				if idx >= len(boxes) {
					return browser.Box{}, browser.Box{}, false
				}
				return boxes[idx], container, true
			},
		})
		frag.Incidents[i].Side = side
		frag.Incidents[i].SideSource = source
		if source == (PositionalResolver{}).Name() {
			positional++
		}
	}
	if positional > 0 {
		logger.Debug("Timeline sides resolved by position", "incidents", positional)
	}
}

func (p *Pipeline) statistics(ctx context.Context, page browser.Page, item models.WorkItem, bundle *models.RawFragmentBundle) error {
	if err := p.navigate(ctx, page, StatisticsURL(p.cfg.BaseURL, item.ID), browser.WaitPolicy{Timeout: p.cfg.NavigationTimeout}); err != nil {
		return err
	}
	if err := page.WaitForContent(ctx, statisticsSelector, p.cfg.StatisticsTimeout); err != nil {
		return err
	}
	doc, err := p.document(ctx, page)
	if err != nil {
		return err
	}
	bundle.Statistics = parseStatistics(doc)
	return nil
}

// odds is optional: a missing table or a failing odds view leaves OddsRows
// nil. Only cancellation and session-level failures are returned.
func (p *Pipeline) odds(ctx context.Context, page browser.Page, item models.WorkItem, bundle *models.RawFragmentBundle, logger *slog.Logger) error {
	url := OddsURL(p.cfg.BaseURL, MatchPath(bundle.Link, item.ID), MidParam(bundle.Link, item.ID))
	wait := browser.WaitPolicy{Timeout: p.cfg.NavigationTimeout, Settle: p.cfg.OddsSettle}

	err := p.stage(ctx, item.ID, StageOdds, logger, func(ctx context.Context) error {
		if err := p.navigate(ctx, page, url, wait); err != nil {
			return err
		}
		doc, err := p.document(ctx, page)
		if err != nil {
			return err
		}
		bundle.OddsRows = parseOdds(doc)
		return nil
	})
	if err == nil {
		if bundle.OddsRows == nil {
			logger.Debug("No odds table", "url", url)
		}
		return nil
	}
	if ctx.Err() != nil || failure.Classify(err) == failure.KindFatalSession {
		return err
	}
	logger.Warn("Odds unavailable, continuing without them", "url", url, "error", err)
	bundle.OddsRows = nil
	return nil
}

func (p *Pipeline) stage(ctx context.Context, itemID, name string, logger *slog.Logger, fn func(ctx context.Context) error) error {
	start := time.Now()
	res := p.policy(name, p.cfg.StageAttempts, p.cfg.StageDelay, logger).Do(ctx, func(ctx context.Context, _ int) error {
		return fn(ctx)
	})
	if p.observe != nil {
		p.observe(itemID, name, time.Since(start), res.Err)
	}
	if res.Err != nil {
		return fmt.Errorf("%s stage: %w", name, res.Err)
	}
	return nil
}

func (p *Pipeline) policy(name string, attempts int, delay time.Duration, logger *slog.Logger) retry.Policy {
	return retry.Policy{Name: name, Attempts: attempts, Delay: delay, Logger: logger, Sleep: p.sleep}
}

func (p *Pipeline) navigate(ctx context.Context, page browser.Page, url string, wait browser.WaitPolicy) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return page.Navigate(ctx, url, wait)
}

func (p *Pipeline) document(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	markup, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (p *Pipeline) closePage(ctx context.Context, page browser.Page, itemID string) {
	if err := page.Close(context.WithoutCancel(ctx)); err != nil {
		p.logger.Debug("Page close failed", "item_id", itemID, "error", err)
	}
}
