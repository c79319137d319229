// Package jobmetrics holds the Prometheus collectors shared by the forecast
// and pacing background jobs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediaplan"

// Metrics groups the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	alerts      *prometheus.CounterVec
	periods     *prometheus.CounterVec
}

var (
	processOnce    sync.Once
	processMetrics *Metrics
)

// NewMetrics registers the collectors on reg. A nil reg shares one
// process-wide set on the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	processOnce.Do(func() { processMetrics = register(prometheus.DefaultRegisterer) })
	return processMetrics
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "total",
			Help: "Job runs by task type and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "failures_total",
			Help: "Failed job runs by task type.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "job", Name: "duration_seconds",
			Help:    "Wall time of job runs.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task type.",
		}, []string{"job"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pacing", Name: "alerts_total",
			Help: "Pacing and payment alerts raised by scans.",
		}, []string{"kind", "severity"}),
		periods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "forecast", Name: "periods_generated_total",
			Help: "Forecast periods written by generations, by granularity.",
		}, []string{"granularity"}),
	}
	reg.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.alerts, m.periods)
	return m
}

// Tracker times one job run.
type Tracker struct {
	m     *Metrics
	job   string
	start time.Time
	now   func() time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{m: m, job: job, start: time.Now(), now: time.Now}
}

// End records the outcome of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.m == nil || t.job == "" {
		return err
	}
	finished := t.now()
	if err != nil {
		t.m.failures.WithLabelValues(t.job).Inc()
		t.m.runs.WithLabelValues(t.job, "failure").Inc()
	} else {
		t.m.runs.WithLabelValues(t.job, "success").Inc()
		t.m.lastSuccess.WithLabelValues(t.job).Set(float64(finished.Unix()))
	}
	t.m.duration.WithLabelValues(t.job).Observe(finished.Sub(t.start).Seconds())
	return err
}

// AddAlerts counts alerts of one kind and severity.
func (m *Metrics) AddAlerts(kind, severity string, count int) {
	if m == nil || count <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.alerts.WithLabelValues(kind, severity).Add(float64(count))
}

// AddPeriods counts forecast periods written for granularity.
func (m *Metrics) AddPeriods(granularity string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.periods.WithLabelValues(granularity).Add(float64(count))
}
