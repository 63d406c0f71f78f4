package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/retry"
)

// ChromeConfig is the launch configuration reused for every relaunch.
type ChromeConfig struct {
	Headless       bool
	NoSandbox      bool
	DisableGPU     bool
	UserAgent      string
	StartupTimeout time.Duration
	// ActionTimeout bounds page actions that have no explicit timeout of their own.
	ActionTimeout time.Duration
	ExtraFlags    map[string]any
}

// ChromeLauncher starts headless Chrome instances through chromedp.
type ChromeLauncher struct {
	cfg    ChromeConfig
	logger *slog.Logger
}

// NewChromeLauncher creates a launcher for cfg.
func NewChromeLauncher(cfg ChromeConfig, logger *slog.Logger) *ChromeLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 30 * time.Second
	}
	return &ChromeLauncher{cfg: cfg, logger: logger}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("no-sandbox", l.cfg.NoSandbox),
		chromedp.Flag("disable-setuid-sandbox", l.cfg.NoSandbox),
		chromedp.Flag("disable-gpu", l.cfg.DisableGPU),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-features", "VizDisplayCompositor"),
		chromedp.Flag("memory-pressure-off", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	for name, value := range l.cfg.ExtraFlags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// Launch starts a browser and verifies it can navigate before handing it out.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	startTime := time.Now()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			l.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	// The first Run allocates the browser and must use the long-lived context.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	testCtx, testCancel := context.WithTimeout(browserCtx, l.cfg.StartupTimeout)
	defer testCancel()
	stop := context.AfterFunc(ctx, testCancel)
	defer stop()

	var title string
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank"), chromedp.Title(&title)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	l.logger.Debug("Browser launched", "startup_time", time.Since(startTime), "headless", l.cfg.Headless)

	return &chromeBrowser{
		ctx:           browserCtx,
		cancel:        browserCancel,
		allocCancel:   allocCancel,
		actionTimeout: l.cfg.ActionTimeout,
	}, nil
}

type chromeBrowser struct {
	ctx           context.Context
	cancel        context.CancelFunc
	allocCancel   context.CancelFunc
	actionTimeout time.Duration
	closeOnce     sync.Once
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	// Creates the target; tied to tabCtx rather than the caller's context.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: tabCancel, actionTimeout: b.actionTimeout}, nil
}

func (b *chromeBrowser) Close(ctx context.Context) error {
	var err error
	b.closeOnce.Do(func() {
		err = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
	})
	return err
}

type chromePage struct {
	ctx           context.Context
	cancel        context.CancelFunc
	actionTimeout time.Duration
	closeOnce     sync.Once
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = p.actionTimeout
	}
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string, wait WaitPolicy) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if wait.ReadySelector != "" {
		actions = append(actions, chromedp.WaitReady(wait.ReadySelector, chromedp.ByQuery))
	}
	if err := p.run(ctx, wait.Timeout, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("navigate %s: %w", url, failure.ErrNavigationTimeout)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return retry.SleepContext(ctx, wait.Settle)
}

func (p *chromePage) WaitForContent(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (p *chromePage) Boxes(ctx context.Context, selector string) ([]Box, error) {
	var boxes []Box
	err := p.run(ctx, 0,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var nodes []*cdp.Node
			if err := chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)).Do(ctx); err != nil {
				return err
			}
			boxes = make([]Box, 0, len(nodes))
			for _, n := range nodes {
				model, err := dom.GetBoxModel().WithNodeID(n.NodeID).Do(ctx)
				if err != nil || model == nil {
					// Not rendered (display:none etc.); keep position in the slice.
					boxes = append(boxes, Box{})
					continue
				}
				boxes = append(boxes, boxFromQuad(model.Border, model.Width, model.Height))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("layout of %s: %w", selector, err)
	}
	return boxes, nil
}

func boxFromQuad(q dom.Quad, width, height int64) Box {
	if len(q) < 8 {
		return Box{Width: float64(width), Height: float64(height)}
	}
	left, top := math.Inf(1), math.Inf(1)
	for i := 0; i+1 < len(q); i += 2 {
		left = math.Min(left, q[i])
		top = math.Min(top, q[i+1])
	}
	return Box{Left: left, Top: top, Width: float64(width), Height: float64(height)}
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (p *chromePage) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		err = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	return err
}
