package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	pkgconfig "github.com/Vodeneev/matchscraper/internal/pkg/config"
	"github.com/Vodeneev/matchscraper/internal/pkg/logging"
)

const (
	serviceName       = "match-scraper"
	defaultConfigPath = "configs/config.yaml"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Scrape finished football matches, statistics and over/under odds into Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (env CONFIG_PATH, default "+defaultConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newRunCmd(opts), newBackfillCmd(opts), newAnalyzeCmd(opts), newCleanDBCmd(opts))
	return cmd
}

// loadConfig reads the config file named by --config, CONFIG_PATH or the
// default path. A missing default file falls back to built-in defaults.
func (o *rootOptions) loadConfig() (*pkgconfig.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	var (
		cfg *pkgconfig.Config
		err error
	)
	if _, statErr := os.Stat(path); statErr != nil && !explicit {
		cfg, err = pkgconfig.FromDefaults()
	} else {
		cfg, err = pkgconfig.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// setup loads config, installs the logger and returns a context cancelled on SIGINT/SIGTERM.
func (o *rootOptions) setup(parent context.Context) (*pkgconfig.Config, *slog.Logger, string, context.Context, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, "", nil, nil, err
	}

	logger, runID, closeLog, err := logging.SetupLogger(&cfg.Logging, serviceName)
	if err != nil {
		return nil, nil, "", nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	setupSignalHandler(ctx, cancel)

	cleanup := func() {
		cancel()
		_ = closeLog()
	}
	return cfg, logger, runID, ctx, cleanup, nil
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
}
