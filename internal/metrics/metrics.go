// Package metrics collects and exposes Prometheus metrics for the detection
// pipeline and the maintenance jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of metric operations used by the pipeline and jobs.
type Recorder interface {
	RecordRun(job string, err error)
	RecordRunDuration(job string, d time.Duration)
	RecordAlert(name string)
	RecordEventsProcessed(n int)
	RecordUserFailure()
	RecordPurged(model string, n int64)
}

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	registry *prometheus.Registry

	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	alerts          *prometheus.CounterVec
	eventsProcessed prometheus.Counter
	userFailures    prometheus.Counter
	purged          *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authwatch_job_runs_total",
			Help: "Completed job runs by job name and status.",
		}, []string{"job", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authwatch_job_run_duration_seconds",
			Help:    "Job run duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authwatch_alerts_total",
			Help: "Alerts raised by alert name.",
		}, []string{"name"}),
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authwatch_events_processed_total",
			Help: "Normalized events run through the analyzer.",
		}),
		userFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authwatch_user_failures_total",
			Help: "Per-user processing failures that were logged and skipped.",
		}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authwatch_purged_rows_total",
			Help: "Rows deleted by the retention purger, by model.",
		}, []string{"model"}),
	}

	c.registry.MustRegister(
		c.runs,
		c.runDuration,
		c.alerts,
		c.eventsProcessed,
		c.userFailures,
		c.purged,
	)

	return c
}

func (c *Collector) RecordRun(job string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.runs.WithLabelValues(job, status).Inc()
}

func (c *Collector) RecordRunDuration(job string, d time.Duration) {
	c.runDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (c *Collector) RecordAlert(name string) {
	c.alerts.WithLabelValues(name).Inc()
}

func (c *Collector) RecordEventsProcessed(n int) {
	c.eventsProcessed.Add(float64(n))
}

func (c *Collector) RecordUserFailure() {
	c.userFailures.Inc()
}

func (c *Collector) RecordPurged(model string, n int64) {
	c.purged.WithLabelValues(model).Add(float64(n))
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)

// Noop is a Recorder that discards everything; used in tests.
type Noop struct{}

func (Noop) RecordRun(string, error)                  {}
func (Noop) RecordRunDuration(string, time.Duration)  {}
func (Noop) RecordAlert(string)                       {}
func (Noop) RecordEventsProcessed(int)                {}
func (Noop) RecordUserFailure()                       {}
func (Noop) RecordPurged(string, int64)               {}
