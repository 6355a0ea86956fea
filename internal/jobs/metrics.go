package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	valuation *prometheus.GaugeVec
	netIncome *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetValuation publishes the carrying value of stock at a location.
func (m *Metrics) SetValuation(location string, value float64) {
	if m == nil {
		return
	}
	m.valuation.WithLabelValues(location).Set(value)
}

// SetNetIncome publishes the last closed month's net income for a location.
func (m *Metrics) SetNetIncome(location string, value float64) {
	if m == nil {
		return
	}
	m.netIncome.WithLabelValues(location).Set(value)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datascoop_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "datascoop_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datascoop_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	valuation := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "datascoop_inventory_value",
		Help: "Carrying value of ice-cream stock per location at the last valuation run.",
	}, []string{"location"})
	netIncome := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "datascoop_month_close_net_income",
		Help: "Net income of the last closed month per location.",
	}, []string{"location"})
	registerer.MustRegister(runs, failures, duration, valuation, netIncome)
	return &Metrics{runs: runs, failures: failures, duration: duration, valuation: valuation, netIncome: netIncome}
}
