// Package orchestrator walks the ordered work list through extraction,
// normalization and persistence, recycling the browser session on quota and
// on fatal failures, and checkpointing the cursor so an interrupted run resumes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Vodeneev/matchscraper/internal/pkg/browser"
	"github.com/Vodeneev/matchscraper/internal/pkg/checkpoint"
	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
	"github.com/Vodeneev/matchscraper/internal/pkg/notify"
)

// Outcome names used in logs, metrics and the error log.
const (
	OutcomeSuccess = "success"
)

type Extractor interface {
	Extract(ctx context.Context, item models.WorkItem) (*models.RawFragmentBundle, error)
}

type Normalizer interface {
	Normalize(bundle *models.RawFragmentBundle) (*models.MatchRecord, error)
}

// RecordSink receives canonical records. Flush makes everything added so far durable.
type RecordSink interface {
	Add(ctx context.Context, rec *models.MatchRecord) error
	Flush(ctx context.Context) error
}

type ErrorLog interface {
	LogError(ctx context.Context, entry models.ErrorLogEntry) error
}

// Session is the part of browser.Manager the orchestrator drives.
type Session interface {
	Recycle(ctx context.Context, reason browser.RecycleReason) error
	MarkProcessed()
	ItemsSinceRecycle() int
}

type Notifier interface {
	RunStarted(ctx context.Context, target string, total, resumeFrom int)
	SessionRecycled(ctx context.Context, reason string, cursor, recycles int)
	RunFinished(ctx context.Context, s notify.RunSummary)
}

// Observer receives per-item and per-recycle events, e.g. for metrics.
type Observer interface {
	ItemFinished(outcome string)
	Recycled(reason string)
	SetProgress(cursor, total int)
}

// ItemRecorder records end-to-end item timings.
type ItemRecorder interface {
	RecordItem(itemID, outcome string, total time.Duration)
}

type Config struct {
	// Target names the run in logs and notifications.
	Target string
	// BatchQuota is the number of items between planned session recycles.
	BatchQuota int
	// CheckpointEvery is the number of successful items between checkpoint writes.
	CheckpointEvery int
	// MaxFatalRetries abandons an item after that many fatal failures in a row; 0 never does.
	MaxFatalRetries int
	RunID           string
}

type Deps struct {
	Session    Session
	Extractor  Extractor
	Normalizer Normalizer
	Sinks      []RecordSink
	Errors     ErrorLog
	Checkpoint checkpoint.Store
	Notifier   Notifier
	Observer   Observer
	Items      ItemRecorder
	Progress   ProgressReporter
	Logger     *slog.Logger
	// PersistStats reports records saved and failed by the durable sink.
	PersistStats func() (saved, failed int)
}

// Result is what a run did.
type Result struct {
	Total       int
	StartIndex  int
	Cursor      int
	Succeeded   int
	Skipped     int
	Recycles    int
	Completed   bool
	Interrupted bool
}

// Snapshot is the live view of a run served on /progress.
type Snapshot struct {
	Target    string    `json:"target"`
	Total     int       `json:"total"`
	Cursor    int       `json:"cursor"`
	Succeeded int       `json:"succeeded"`
	Skipped   int       `json:"skipped"`
	Recycles  int       `json:"recycles"`
	Current   string    `json:"current_item,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Done      bool      `json:"done"`
}

type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu   sync.Mutex
	snap Snapshot
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.BatchQuota <= 0 {
		cfg.BatchQuota = 20
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Checkpoint == nil {
		deps.Checkpoint = checkpoint.Nop{}
	}
	if deps.Progress == nil {
		deps.Progress = nopProgress{}
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.With("component", "orchestrator"),
	}
}

// Snapshot returns the current progress of the run.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// runState is the mutable state of one Run.
type runState struct {
	items         []models.WorkItem
	cursor        int
	recycles      int
	lastRecycleAt int
	fatalStreak   int
	sinceSave     int
	succeeded     int
	skipped       int
	startedAt     time.Time
}

// Run processes items from the restored checkpoint (or 0) to the end. It
// returns ctx.Err() when interrupted, after flushing sinks and saving the cursor.
func (o *Orchestrator) Run(ctx context.Context, items []models.WorkItem) (Result, error) {
	st := &runState{
		items:         items,
		lastRecycleAt: -1,
		startedAt:     time.Now(),
	}
	o.restore(ctx, st)
	start := st.cursor

	o.publish(st, "", false)
	o.log.Info("Run starting",
		"target", o.cfg.Target,
		"total", len(items),
		"start_index", start,
		"batch_quota", o.cfg.BatchQuota)
	if o.deps.Notifier != nil {
		o.deps.Notifier.RunStarted(ctx, o.cfg.Target, len(items), start)
	}
	o.deps.Progress.Start(o.cfg.Target, len(items), start)

	var runErr error
	for st.cursor < len(items) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if o.quotaDue(st) {
			if err := o.recycle(ctx, st, browser.ReasonQuota); err != nil && ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
		}

		item := st.items[st.cursor]
		o.publish(st, item.ID, false)

		kind, err := o.process(ctx, item)
		if err != nil && failure.IsShutdown(ctx, err) {
			runErr = ctx.Err()
			break
		}
		if err == nil {
			o.advance(ctx, st, item, true)
			continue
		}

		if kind == failure.KindFatalSession {
			st.fatalStreak++
			if o.cfg.MaxFatalRetries <= 0 || st.fatalStreak <= o.cfg.MaxFatalRetries {
				o.log.Warn("Fatal session failure, recycling and retrying item",
					"item_id", item.ID,
					"index", st.cursor,
					"attempt", st.fatalStreak,
					"error", err)
				if rerr := o.recycle(ctx, st, browser.ReasonFatal); rerr != nil && ctx.Err() != nil {
					runErr = ctx.Err()
					break
				}
				continue
			}
			o.log.Warn("Fatal retries exhausted, abandoning item",
				"item_id", item.ID,
				"index", st.cursor,
				"retries", o.cfg.MaxFatalRetries)
			kind = failure.KindTransientItem
		}

		o.logFailure(ctx, item, kind, err, st.fatalStreak)
		o.advance(ctx, st, item, false)
		if o.deps.Observer != nil {
			o.deps.Observer.ItemFinished(kind.String())
		}
	}

	return o.finish(ctx, st, start, runErr)
}

func (o *Orchestrator) restore(ctx context.Context, st *runState) {
	cp, err := o.deps.Checkpoint.Load(ctx)
	if err != nil {
		o.log.Warn("Checkpoint unreadable, starting from the beginning", "error", err)
		return
	}
	if cp == nil {
		return
	}
	// The cursor is a position in the list it was taken on. A list of another
	// length (e.g. with stored matches filtered out) gives it no meaning.
	if cp.TotalMatches != 0 && cp.TotalMatches != len(st.items) {
		o.log.Warn("Checkpoint was taken on a different work list, starting from the beginning",
			"checkpoint_total", cp.TotalMatches,
			"checkpoint_index", cp.LastProcessedIndex,
			"total", len(st.items))
		return
	}
	st.cursor = min(max(cp.LastProcessedIndex, 0), len(st.items))
	st.recycles = cp.BrowserRestartCount
	o.log.Info("Resuming from checkpoint",
		"last_processed_index", cp.LastProcessedIndex,
		"browser_restart_count", cp.BrowserRestartCount,
		"saved_at", cp.Timestamp)
}

// quotaDue reports whether a planned recycle is due before dispatching the
// item at the cursor: the cursor is a positive multiple of the quota, items
// remain, no recycle already happened at this cursor and the session has
// done some work.
func (o *Orchestrator) quotaDue(st *runState) bool {
	i := st.cursor
	return i > 0 &&
		i%o.cfg.BatchQuota == 0 &&
		i < len(st.items) &&
		i != st.lastRecycleAt &&
		o.deps.Session.ItemsSinceRecycle() > 0
}

func (o *Orchestrator) recycle(ctx context.Context, st *runState, reason browser.RecycleReason) error {
	st.recycles++
	st.lastRecycleAt = st.cursor
	o.publish(st, "", false)
	if o.deps.Observer != nil {
		o.deps.Observer.Recycled(string(reason))
	}
	if o.deps.Notifier != nil && reason == browser.ReasonFatal {
		o.deps.Notifier.SessionRecycled(ctx, string(reason), st.cursor, st.recycles)
	}

	err := o.deps.Session.Recycle(ctx, reason)
	if err != nil {
		// A failed relaunch surfaces again on the next item as a fatal failure.
		o.log.Error("Session recycle failed", "reason", string(reason), "index", st.cursor, "error", err)
	}
	return err
}

// process runs one item through extraction, normalization and the sinks.
func (o *Orchestrator) process(ctx context.Context, item models.WorkItem) (failure.Kind, error) {
	started := time.Now()
	o.deps.Session.MarkProcessed()

	outcome := OutcomeSuccess
	kind, err := o.processOnce(ctx, item)
	if err != nil {
		outcome = kind.String()
	}
	if o.deps.Items != nil && !failure.IsShutdown(ctx, err) {
		o.deps.Items.RecordItem(item.ID, outcome, time.Since(started))
	}
	return kind, err
}

func (o *Orchestrator) processOnce(ctx context.Context, item models.WorkItem) (failure.Kind, error) {
	bundle, err := o.deps.Extractor.Extract(ctx, item)
	if err != nil {
		return failure.Classify(err), err
	}
	rec, err := o.deps.Normalizer.Normalize(bundle)
	if err != nil {
		return failure.Classify(err), err
	}
	for _, sink := range o.deps.Sinks {
		if err := sink.Add(ctx, rec); err != nil {
			if failure.IsShutdown(ctx, err) {
				return failure.KindTransientItem, err
			}
			// Buffered sinks only fail here on flush; the record itself is
			// already queued, so the item still counts as done.
			o.log.Warn("Sink rejected record", "item_id", item.ID, "error", err)
		}
	}
	return failure.KindTransientItem, nil
}

// advance moves the cursor past item, which either succeeded or is abandoned.
func (o *Orchestrator) advance(ctx context.Context, st *runState, item models.WorkItem, success bool) {
	st.cursor++
	st.fatalStreak = 0
	if success {
		st.succeeded++
		st.sinceSave++
		if o.deps.Observer != nil {
			o.deps.Observer.ItemFinished(OutcomeSuccess)
		}
		o.log.Info("Item processed", "item_id", item.ID, "index", st.cursor-1, "total", len(st.items))
	} else {
		st.skipped++
	}
	o.deps.Progress.Advance()
	o.publish(st, "", false)

	if success && st.sinceSave >= o.cfg.CheckpointEvery && st.cursor < len(st.items) {
		o.saveCheckpoint(ctx, st)
	}
}

// saveCheckpoint flushes every sink and, only if all flushes succeed, records the cursor.
func (o *Orchestrator) saveCheckpoint(ctx context.Context, st *runState) bool {
	if err := o.flushSinks(ctx); err != nil {
		o.log.Error("Sink flush failed, checkpoint not advanced", "index", st.cursor, "error", err)
		return false
	}
	cp := models.Checkpoint{
		LastProcessedIndex:  st.cursor,
		BrowserRestartCount: st.recycles,
		Timestamp:           time.Now().UTC(),
		TotalMatches:        len(st.items),
	}
	if err := o.deps.Checkpoint.Save(ctx, cp); err != nil {
		o.log.Error("Checkpoint save failed", "index", st.cursor, "error", err)
		return false
	}
	st.sinceSave = 0
	o.log.Debug("Checkpoint saved", "last_processed_index", cp.LastProcessedIndex, "browser_restart_count", cp.BrowserRestartCount)
	return true
}

func (o *Orchestrator) flushSinks(ctx context.Context) error {
	var errs []error
	for _, sink := range o.deps.Sinks {
		if err := sink.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) logFailure(ctx context.Context, item models.WorkItem, kind failure.Kind, err error, fatalRetries int) {
	o.log.Warn("Item skipped",
		"item_id", item.ID,
		"kind", kind.String(),
		"error", err)
	if o.deps.Errors == nil {
		return
	}

	details := map[string]any{"index": item.Index}
	if o.cfg.RunID != "" {
		details["run_id"] = o.cfg.RunID
	}
	if fatalRetries > 0 {
		details["fatal_retries"] = fatalRetries
	}
	stage := "extract"
	var verr *failure.ValidationError
	if errors.As(err, &verr) {
		stage = "normalize"
		details["field"] = verr.Field
	}
	entry := models.ErrorLogEntry{
		ItemID:    item.ID,
		ErrorKind: kind.String(),
		Message:   err.Error(),
		Context:   details,
		Stage:     stage,
		Timestamp: time.Now(),
	}
	if lerr := o.deps.Errors.LogError(ctx, entry); lerr != nil {
		o.log.Error("Failed to record item error", "item_id", item.ID, "error", lerr)
	}
}

func (o *Orchestrator) finish(ctx context.Context, st *runState, start int, runErr error) (Result, error) {
	res := Result{
		Total:      len(st.items),
		StartIndex: start,
		Cursor:     st.cursor,
		Succeeded:  st.succeeded,
		Skipped:    st.skipped,
		Recycles:   st.recycles,
	}
	// Final flush and checkpoint writes happen even after cancellation.
	cleanupCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		res.Interrupted = true
		saved := o.saveCheckpoint(cleanupCtx, st)
		o.log.Warn("Run interrupted", "cursor", st.cursor, "checkpoint_saved", saved, "error", runErr)
	} else {
		res.Completed = true
		if err := o.flushSinks(cleanupCtx); err != nil {
			o.log.Error("Final sink flush failed, keeping checkpoint", "error", err)
			o.saveCheckpoint(cleanupCtx, st)
			runErr = fmt.Errorf("final flush: %w", err)
			res.Completed = false
		} else if err := o.deps.Checkpoint.Delete(cleanupCtx); err != nil {
			o.log.Warn("Checkpoint delete failed", "error", err)
		}
		o.log.Info("Run completed",
			"total", len(st.items),
			"succeeded", st.succeeded,
			"skipped", st.skipped,
			"recycles", st.recycles,
			"elapsed", time.Since(st.startedAt).Round(time.Second))
	}

	o.publish(st, "", true)
	o.deps.Progress.Finish(res.Interrupted)
	if o.deps.Notifier != nil {
		summary := notify.RunSummary{
			Target:      o.cfg.Target,
			Total:       res.Total,
			Cursor:      res.Cursor,
			Succeeded:   res.Succeeded,
			Skipped:     res.Skipped,
			Recycles:    res.Recycles,
			StartedAt:   st.startedAt,
			Interrupted: res.Interrupted,
		}
		if o.deps.PersistStats != nil {
			summary.Persisted, summary.PersistFail = o.deps.PersistStats()
		}
		o.deps.Notifier.RunFinished(cleanupCtx, summary)
	}
	return res, runErr
}

func (o *Orchestrator) publish(st *runState, current string, done bool) {
	o.mu.Lock()
	o.snap = Snapshot{
		Target:    o.cfg.Target,
		Total:     len(st.items),
		Cursor:    st.cursor,
		Succeeded: st.succeeded,
		Skipped:   st.skipped,
		Recycles:  st.recycles,
		Current:   current,
		StartedAt: st.startedAt,
		Done:      done,
	}
	o.mu.Unlock()
	if o.deps.Observer != nil {
		o.deps.Observer.SetProgress(st.cursor, len(st.items))
	}
}
