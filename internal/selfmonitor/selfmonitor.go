// Package selfmonitor implements the exporter's own scrape instrumentation:
// per-collector duration/error/success bookkeeping and a process-wide
// metrics-cardinality gauge.
package selfmonitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// durationBuckets are the fixed histogram buckets for
// pg_exporter_collector_scrape_duration_seconds, from 1ms up to the 5s
// a badly stuck collector might take.
var durationBuckets = []float64{
	0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1, 2.5, 5,
}

// Monitor owns the six self-monitoring metric families and hands out scoped
// ScrapeTimer objects, one per collector invocation.
type Monitor struct {
	duration      *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	lastTimestamp *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
	metricsTotal  prometheus.Gauge
	scrapesTotal  prometheus.Gauge

	mu sync.Mutex
}

// New constructs a Monitor. Callers must register it with the process
// Prometheus registry via Describe/Collect (Monitor implements
// prometheus.Collector) before first use.
func New() *Monitor {
	return &Monitor{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pg_exporter_collector_scrape_duration_seconds",
			Help:    "Wall time spent collecting metrics for a single collector.",
			Buckets: durationBuckets,
		}, []string{"collector"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pg_exporter_collector_scrape_errors_total",
			Help: "Cumulative number of failed scrapes, per collector.",
		}, []string{"collector"}),
		lastTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pg_exporter_collector_last_scrape_timestamp_seconds",
			Help: "Unix timestamp of the last scrape attempt, per collector.",
		}, []string{"collector"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pg_exporter_collector_last_scrape_success",
			Help: "Whether the last scrape of this collector succeeded (1) or not (0).",
		}, []string{"collector"}),
		metricsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pg_exporter_metrics_total",
			Help: "Current number of distinct (family, label-tuple) samples exposed.",
		}),
		scrapesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pg_exporter_scrapes_total",
			Help: "Total number of scrapes performed since start.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Monitor) Describe(ch chan<- *prometheus.Desc) {
	m.duration.Describe(ch)
	m.errors.Describe(ch)
	m.lastTimestamp.Describe(ch)
	m.lastSuccess.Describe(ch)
	ch <- m.metricsTotal.Desc()
	ch <- m.scrapesTotal.Desc()
}

// Collect implements prometheus.Collector.
func (m *Monitor) Collect(ch chan<- prometheus.Metric) {
	m.duration.Collect(ch)
	m.errors.Collect(ch)
	m.lastTimestamp.Collect(ch)
	m.lastSuccess.Collect(ch)
	ch <- m.metricsTotal
	ch <- m.scrapesTotal
}

// SetCardinality records the current total sample count, computed by the
// Collector Registry during Collect, once its collectors have finished and
// before the scrape is encoded.
func (m *Monitor) SetCardinality(n int) {
	m.metricsTotal.Set(float64(n))
}

// IncScrapes increments the total-scrapes metric, once per completed
// scrape. It is exposed as a gauge, not a Prometheus counter type.
func (m *Monitor) IncScrapes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrapesTotal.Add(1)
}

// Start begins timing a collector's scrape and returns a ScrapeTimer scoped
// to it. Callers should defer timer.Finish() so that a collector which
// returns early without calling Success/Error still records an outcome.
func (m *Monitor) Start(collector string) *ScrapeTimer {
	return &ScrapeTimer{
		monitor:   m,
		collector: collector,
		started:   time.Now(),
	}
}

// ScrapeTimer is a scoped, single-use timer acquired from Monitor.Start. It
// has three possible terminations: explicit Success, explicit Error, or
// implicit disposal (Finish called with neither having run), which defaults
// to success. The optimistic default lets collectors that simply
// `return nil` on the happy path avoid an extra explicit call, at the cost
// of masking a bug where a collector returns early without reporting
// failure explicitly.
type ScrapeTimer struct {
	monitor   *Monitor
	collector string
	started   time.Time
	done      bool
}

// Success records a successful scrape: observes elapsed duration, sets the
// timestamp, and flips last-scrape-success to 1.
func (t *ScrapeTimer) Success() {
	if t.done {
		return
	}
	t.done = true
	elapsed := time.Since(t.started).Seconds()
	t.monitor.duration.WithLabelValues(t.collector).Observe(elapsed)
	t.monitor.lastTimestamp.WithLabelValues(t.collector).Set(float64(time.Now().Unix()))
	t.monitor.lastSuccess.WithLabelValues(t.collector).Set(1)
}

// Error records a failed scrape: increments the error counter, sets the
// timestamp, and flips last-scrape-success to 0. Duration is not observed
// on error - error latency is typically a timeout cap, not useful signal.
func (t *ScrapeTimer) Error() {
	if t.done {
		return
	}
	t.done = true
	t.monitor.errors.WithLabelValues(t.collector).Inc()
	t.monitor.lastTimestamp.WithLabelValues(t.collector).Set(float64(time.Now().Unix()))
	t.monitor.lastSuccess.WithLabelValues(t.collector).Set(0)
}

// Finish terminates the timer, defaulting to Success if neither Success nor
// Error has been called yet. Intended to be deferred immediately after
// Start.
func (t *ScrapeTimer) Finish() {
	if !t.done {
		t.Success()
	}
}
