// Package performance records per-stage and per-item timings of a scraping run.
package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Tracker collects stage and item timings. It is safe for concurrent use so the
// health server can read it while a run is in progress.
type Tracker struct {
	mu sync.RWMutex

	started time.Time
	stages  map[string]*stageStats
	items   []ItemTiming
}

// ItemTiming is the end-to-end result of one work item.
type ItemTiming struct {
	ItemID  string
	Outcome string
	Total   time.Duration
}

type stageStats struct {
	count    int
	failures int
	total    time.Duration
	slowest  time.Duration
}

func NewTracker() *Tracker {
	return &Tracker{
		started: time.Now(),
		stages:  make(map[string]*stageStats),
		items:   make([]ItemTiming, 0, 512),
	}
}

// Reset clears all metrics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.started = time.Now()
	t.stages = make(map[string]*stageStats)
	t.items = t.items[:0]
}

// RecordStage records one stage run. Its signature matches scraper.StageObserver.
func (t *Tracker) RecordStage(_ string, stage string, took time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.stages[stage]
	if !ok {
		st = &stageStats{}
		t.stages[stage] = st
	}
	st.count++
	st.total += took
	if took > st.slowest {
		st.slowest = took
	}
	if err != nil {
		st.failures++
	}
}

// RecordItem records the outcome of one work item.
func (t *Tracker) RecordItem(itemID, outcome string, total time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = append(t.items, ItemTiming{ItemID: itemID, Outcome: outcome, Total: total})
}

// MetricsResponse is the JSON shape of the tracker served by the health server.
type MetricsResponse struct {
	Elapsed string `json:"elapsed"`

	Items struct {
		Processed int            `json:"processed"`
		Outcomes  map[string]int `json:"outcomes"`
		AvgTime   string         `json:"avg_time"`
	} `json:"items"`

	Stages map[string]StageMetrics `json:"stages"`

	SlowestItems []ItemMetrics `json:"slowest_items"`
}

type StageMetrics struct {
	Count    int    `json:"count"`
	Failures int    `json:"failures"`
	AvgTime  string `json:"avg_time"`
	Slowest  string `json:"slowest"`
}

type ItemMetrics struct {
	ItemID  string `json:"item_id"`
	Outcome string `json:"outcome"`
	Total   string `json:"total"`
}

// GetMetrics returns a snapshot of the collected timings.
func (t *Tracker) GetMetrics() MetricsResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var resp MetricsResponse
	resp.Elapsed = time.Since(t.started).Round(time.Second).String()
	resp.Items.Processed = len(t.items)
	resp.Items.Outcomes = make(map[string]int)

	var total time.Duration
	for _, it := range t.items {
		resp.Items.Outcomes[it.Outcome]++
		total += it.Total
	}
	if len(t.items) > 0 {
		resp.Items.AvgTime = (total / time.Duration(len(t.items))).Round(time.Millisecond).String()
	}

	resp.Stages = make(map[string]StageMetrics, len(t.stages))
	for name, st := range t.stages {
		resp.Stages[name] = StageMetrics{
			Count:    st.count,
			Failures: st.failures,
			AvgTime:  (st.total / time.Duration(st.count)).Round(time.Millisecond).String(),
			Slowest:  st.slowest.Round(time.Millisecond).String(),
		}
	}

	for _, it := range t.slowestLocked(5) {
		resp.SlowestItems = append(resp.SlowestItems, ItemMetrics{
			ItemID:  it.ItemID,
			Outcome: it.Outcome,
			Total:   it.Total.Round(time.Millisecond).String(),
		})
	}
	return resp
}

func (t *Tracker) slowestLocked(n int) []ItemTiming {
	sorted := make([]ItemTiming, len(t.items))
	copy(sorted, t.items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Total > sorted[j].Total })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// PrintSummary logs the collected timings.
func (t *Tracker) PrintSummary(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	m := t.GetMetrics()
	if m.Items.Processed == 0 && len(m.Stages) == 0 {
		logger.Info("No performance data collected yet")
		return
	}

	logger.Info("PERFORMANCE SUMMARY",
		"elapsed", m.Elapsed,
		"processed_items", m.Items.Processed,
		"avg_item_time", m.Items.AvgTime)

	outcomes := make([]string, 0, len(m.Items.Outcomes))
	for o := range m.Items.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		logger.Info("Item outcome", "outcome", o, "count", m.Items.Outcomes[o])
	}

	stages := make([]string, 0, len(m.Stages))
	for s := range m.Stages {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	for _, s := range stages {
		st := m.Stages[s]
		logger.Info("Stage timing",
			"stage", s,
			"count", st.Count,
			"failures", st.Failures,
			"avg_time", st.AvgTime,
			"slowest", st.Slowest)
	}

	for _, it := range m.SlowestItems {
		logger.Info("Slowest item", "item_id", it.ItemID, "outcome", it.Outcome, "total", it.Total)
	}
}
