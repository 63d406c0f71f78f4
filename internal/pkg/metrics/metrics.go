// Package metrics exposes run counters and timings in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one run on a private registry, so several
// instances (tests, backfill after run) never collide.
type Metrics struct {
	registry *prometheus.Registry

	items               *prometheus.CounterVec
	recycles            *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	persistenceFailures prometheus.Counter
	cursor              prometheus.Gauge
	total               prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchscraper",
			Name:      "items_total",
			Help:      "Work items finished, by outcome.",
		}, []string{"outcome"}),
		recycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchscraper",
			Name:      "session_recycles_total",
			Help:      "Browser session recycles, by reason.",
		}, []string{"reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchscraper",
			Name:      "stage_duration_seconds",
			Help:      "Extraction stage duration including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"stage", "result"}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchscraper",
			Name:      "persistence_failures_total",
			Help:      "Records that could not be written to storage.",
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matchscraper",
			Name:      "cursor",
			Help:      "Index of the next work item.",
		}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matchscraper",
			Name:      "work_items",
			Help:      "Length of the work list.",
		}),
	}
	m.registry.MustRegister(m.items, m.recycles, m.stageDuration, m.persistenceFailures, m.cursor, m.total)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ItemFinished(outcome string) {
	m.items.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Recycled(reason string) {
	m.recycles.WithLabelValues(reason).Inc()
}

// ObserveStage has the shape of scraper.StageObserver.
func (m *Metrics) ObserveStage(_ string, stage string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stageDuration.WithLabelValues(stage, result).Observe(took.Seconds())
}

func (m *Metrics) PersistenceFailed() {
	m.persistenceFailures.Inc()
}

func (m *Metrics) SetProgress(cursor, total int) {
	m.cursor.Set(float64(cursor))
	m.total.Set(float64(total))
}
