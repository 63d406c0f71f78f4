package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Vodeneev/matchscraper/internal/orchestrator"
	"github.com/Vodeneev/matchscraper/internal/pkg/browser"
	"github.com/Vodeneev/matchscraper/internal/pkg/checkpoint"
	pkgconfig "github.com/Vodeneev/matchscraper/internal/pkg/config"
	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/health"
	"github.com/Vodeneev/matchscraper/internal/pkg/metrics"
	"github.com/Vodeneev/matchscraper/internal/pkg/notify"
	"github.com/Vodeneev/matchscraper/internal/pkg/performance"
	"github.com/Vodeneev/matchscraper/internal/pkg/storage"
	"github.com/Vodeneev/matchscraper/internal/scraper"
)

// app holds the long-lived components shared by run and backfill.
type app struct {
	cfg     *pkgconfig.Config
	logger  *slog.Logger
	runID   string
	loc     *time.Location
	session *browser.Manager
	scraper *scraper.Pipeline
	repo    storage.Repository
	sink    *storage.Sink
	metrics *metrics.Metrics
	tracker *performance.Tracker
	notify  *notify.TelegramNotifier
}

// newApp wires the browser session, pipeline and storage. Storage is opened
// first: failing to initialise it is the one error that stops a run outright.
func newApp(ctx context.Context, cfg *pkgconfig.Config, logger *slog.Logger, runID string, requireDB bool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		runID:   runID,
		loc:     loc,
		metrics: metrics.New(),
		tracker: performance.NewTracker(),
	}

	if cfg.Postgres.DSN != "" {
		repo, err := storage.NewPostgresRepository(ctx, &cfg.Postgres)
		if err != nil {
			logger.Error("Storage initialization failed", "error", err)
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.repo = repo
		a.sink = storage.NewSink(repo, cfg.Output.BatchSize, logger,
			storage.WithRunID(runID),
			storage.WithFailureHook(func(*failure.PersistenceError) { a.metrics.PersistenceFailed() }))
	} else if requireDB {
		return nil, errors.New("postgres.dsn (or POSTGRES_DSN) is required")
	} else {
		logger.Warn("No Postgres DSN configured, writing files only")
	}

	launcher := browser.NewChromeLauncher(browser.ChromeConfig{
		Headless:       !cfg.Browser.Headful,
		NoSandbox:      !cfg.Browser.Sandbox,
		DisableGPU:     true,
		UserAgent:      cfg.Browser.UserAgent,
		StartupTimeout: cfg.Browser.StartupTimeout,
		ActionTimeout:  cfg.Browser.ActionTimeout,
		ExtraFlags:     extraFlags(cfg.Browser.ExtraFlags),
	}, logger)
	a.session = browser.NewManager(launcher, browser.ManagerConfig{
		QuotaCooldown: cfg.Session.QuotaCooldown,
		FatalCooldown: cfg.Session.FatalCooldown,
	}, logger)

	a.scraper = scraper.NewPipeline(pipelineConfig(cfg), a.session, logger,
		scraper.WithStageObserver(func(itemID, stage string, took time.Duration, err error) {
			a.tracker.RecordStage(itemID, stage, took, err)
			a.metrics.ObserveStage(itemID, stage, took, err)
		}))

	a.notify = notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	return a, nil
}

func pipelineConfig(cfg *pkgconfig.Config) scraper.Config {
	pc := scraper.DefaultConfig()
	ex := cfg.Extraction
	pc.BaseURL = cfg.Source.BaseURL
	pc.NavigationTimeout = ex.NavigationTimeout
	pc.ContentTimeout = ex.ContentTimeout
	pc.TimelineTimeout = ex.TimelineTimeout
	pc.StatisticsTimeout = ex.StatisticsTimeout
	pc.SummarySettle = ex.SummarySettle
	pc.OddsSettle = ex.OddsSettle
	pc.ItemAttempts = ex.ItemAttempts
	pc.ItemDelay = ex.ItemDelay
	pc.StageAttempts = ex.StageAttempts
	pc.StageDelay = ex.StageDelay
	pc.MinNavigationInterval = ex.MinNavigationInterval
	return pc
}

func extraFlags(flags map[string]string) map[string]any {
	out := make(map[string]any, len(flags))
	for k, v := range flags {
		switch v {
		case "", "true":
			out[k] = true
		case "false":
			out[k] = false
		default:
			out[k] = v
		}
	}
	return out
}

// checkpointStore picks the configured backend for the league file name.
func (a *app) checkpointStore(ctx context.Context, fileName string) (checkpoint.Store, func(), error) {
	cp := a.cfg.Checkpoint
	switch cp.Backend {
	case "redis":
		store, err := checkpoint.NewRedisStore(ctx, checkpoint.RedisConfig{
			Addr:     cp.Redis.Addr,
			Password: cp.Redis.Password,
			DB:       cp.Redis.DB,
			Key:      checkpoint.KeyFor(fileName),
			TTL:      cp.Redis.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "none":
		return checkpoint.Nop{}, func() {}, nil
	default:
		dir := cp.Dir
		if dir == "" {
			dir = a.cfg.Output.Dir
		}
		store := checkpoint.NewFileStore(checkpoint.PathFor(dir, fileName))
		a.logger.Info("Using checkpoint file", "path", store.Path())
		return store, func() {}, nil
	}
}

// serveHealth starts the health server when an address is configured.
func (a *app) serveHealth(ctx context.Context, orch *orchestrator.Orchestrator) {
	if a.cfg.Health.Addr == "" {
		return
	}
	health.Run(ctx, a.cfg.Health.Addr, serviceName, health.Sources{
		Ready: func() error {
			if ctx.Err() != nil {
				return errors.New("shutting down")
			}
			return nil
		},
		Metrics:     a.metrics.Handler(),
		Progress:    func() any { return orch.Snapshot() },
		Performance: func() any { return a.tracker.GetMetrics() },
	}, 5*time.Second)
}

func (a *app) orchestrator(target string, store checkpoint.Store, sinks []orchestrator.RecordSink, normalizer orchestrator.Normalizer, showProgress bool) *orchestrator.Orchestrator {
	deps := orchestrator.Deps{
		Session:    a.session,
		Extractor:  a.scraper,
		Normalizer: normalizer,
		Sinks:      sinks,
		Checkpoint: store,
		Observer:   a.metrics,
		Items:      a.tracker,
		Logger:     a.logger,
	}
	if a.repo != nil {
		deps.Errors = a.repo
	}
	if a.sink != nil {
		deps.PersistStats = func() (int, int) {
			s := a.sink.Stats()
			return s.Saved, s.Failed
		}
	}
	if a.notify != nil {
		deps.Notifier = a.notify
	}
	if showProgress {
		deps.Progress = orchestrator.NewBarProgress(os.Stderr)
	}
	return orchestrator.New(orchestrator.Config{
		Target:          target,
		BatchQuota:      a.cfg.Session.BatchQuota,
		CheckpointEvery: a.cfg.Checkpoint.Every,
		MaxFatalRetries: a.cfg.Session.MaxFatalRetries,
		RunID:           a.runID,
	}, deps)
}

func (a *app) close(ctx context.Context) {
	steps := []failure.Step{
		{Name: "close browser session", Run: a.session.Close},
		{Name: "stop notifier", Run: func(context.Context) error { a.notify.Stop(); return nil }},
	}
	if a.repo != nil {
		steps = append(steps, failure.Step{Name: "close storage", Run: func(context.Context) error { return a.repo.Close() }})
	}
	_ = failure.Cleanup(context.WithoutCancel(ctx), a.logger, steps...)
	a.tracker.PrintSummary(a.logger)
}
