package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/retry"
)

// State is the lifecycle state of the managed session.
type State int

const (
	StateClosed State = iota
	StateActive
	StateRecycling
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRecycling:
		return "recycling"
	default:
		return "closed"
	}
}

// RecycleReason says why a session is being torn down and relaunched.
type RecycleReason string

const (
	ReasonQuota RecycleReason = "quota"
	ReasonFatal RecycleReason = "fatal"
)

// ManagerConfig holds the cool-downs applied between teardown and relaunch.
type ManagerConfig struct {
	QuotaCooldown time.Duration
	FatalCooldown time.Duration
}

// Option customises a Manager.
type Option func(*Manager)

// WithSleep replaces the cool-down sleep, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithRecycleHook registers fn to run after every completed recycle.
func WithRecycleHook(fn func(reason RecycleReason)) Option {
	return func(m *Manager) { m.onRecycle = fn }
}

// Manager owns the single live browser session. It launches lazily, tracks
// every page opened on the session and tears everything down on recycle.
type Manager struct {
	launcher  Launcher
	cfg       ManagerConfig
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	onRecycle func(reason RecycleReason)

	mu           sync.Mutex
	browser      Browser
	pages        map[*trackedPage]struct{}
	state        State
	sinceRecycle int
	recycles     int
	launches     int
}

// NewManager creates a Manager; no browser is started until Acquire.
func NewManager(launcher Launcher, cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		launcher: launcher,
		cfg:      cfg,
		logger:   logger,
		sleep:    retry.SleepContext,
		pages:    make(map[*trackedPage]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns the live session, launching one if none exists.
func (m *Manager) Acquire(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx)
}

func (m *Manager) acquireLocked(ctx context.Context) (Browser, error) {
	if m.state == StateActive && m.browser != nil {
		return m.browser, nil
	}
	b, err := m.launcher.Launch(ctx)
	if err != nil {
		m.state = StateClosed
		return nil, fmt.Errorf("%w: %v", failure.ErrSessionUnavailable, err)
	}
	m.browser = b
	m.state = StateActive
	m.launches++
	m.logger.Info("Browser session started", "launch", m.launches)
	return b, nil
}

// NewPage opens a page on the live session. The page is closed on recycle
// if the caller has not closed it already.
func (m *Manager) NewPage(ctx context.Context) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.acquireLocked(ctx)
	if err != nil {
		return nil, err
	}
	p, err := b.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	tp := &trackedPage{Page: p, manager: m}
	m.pages[tp] = struct{}{}
	return tp, nil
}

// MarkProcessed counts one item attempted on the current session.
func (m *Manager) MarkProcessed() {
	m.mu.Lock()
	m.sinceRecycle++
	m.mu.Unlock()
}

// ItemsSinceRecycle is the number of items processed on the current session.
func (m *Manager) ItemsSinceRecycle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinceRecycle
}

// Recycles is the number of completed recycles.
func (m *Manager) Recycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recycles
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Recycle tears the session down, waits out the cool-down for reason and
// launches a replacement. Teardown failures are logged, never returned.
func (m *Manager) Recycle(ctx context.Context, reason RecycleReason) error {
	m.mu.Lock()
	m.state = StateRecycling
	processed := m.sinceRecycle
	m.teardownLocked(ctx)
	m.sinceRecycle = 0
	m.mu.Unlock()

	cooldown := m.cfg.QuotaCooldown
	if reason == ReasonFatal {
		cooldown = m.cfg.FatalCooldown
	}
	m.logger.Info("Recycling browser session",
		"reason", string(reason),
		"items_on_session", processed,
		"cooldown", cooldown)

	if err := m.sleep(ctx, cooldown); err != nil {
		m.mu.Lock()
		m.state = StateClosed
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.recycles++
	_, err := m.acquireLocked(ctx)
	m.mu.Unlock()

	if m.onRecycle != nil {
		m.onRecycle(reason)
	}
	if err != nil {
		return fmt.Errorf("relaunch after %s recycle: %w", reason, err)
	}
	return nil
}

// Close tears the session down for good.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.teardownLocked(ctx)
	m.state = StateClosed
	return err
}

func (m *Manager) teardownLocked(ctx context.Context) error {
	steps := make([]failure.Step, 0, len(m.pages)+1)
	for tp := range m.pages {
		page := tp.Page
		steps = append(steps, failure.Step{Name: "close page", Run: page.Close})
	}
	clear(m.pages)
	if m.browser != nil {
		b := m.browser
		steps = append(steps, failure.Step{Name: "close browser", Run: b.Close})
	}
	m.browser = nil

	// Teardown runs even when ctx is already cancelled.
	return failure.Cleanup(context.WithoutCancel(ctx), m.logger, steps...)
}

type trackedPage struct {
	Page
	manager *Manager
}

func (p *trackedPage) Close(ctx context.Context) error {
	m := p.manager
	m.mu.Lock()
	_, open := m.pages[p]
	delete(m.pages, p)
	m.mu.Unlock()
	if !open {
		return nil
	}
	err := p.Page.Close(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
