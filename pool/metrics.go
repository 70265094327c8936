package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a pool reports to. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsStarted   prometheus.Counter
	JobsPanicked  prometheus.Counter
	BusyWorkers   prometheus.Gauge
	QueueDepth    prometheus.Gauge
	JobDuration   prometheus.Histogram
}

// NewMetrics creates the pool collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the pool",
		}),
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_started_total",
			Help:      "Total number of jobs dequeued and started by a worker",
		}),
		JobsPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked while executing",
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "busy_workers",
			Help:      "Number of workers currently executing a job",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in the shared queue",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.JobsSubmitted,
		m.JobsStarted,
		m.JobsPanicked,
		m.BusyWorkers,
		m.QueueDepth,
		m.JobDuration,
	)

	return m
}

// enqueued runs before the push so a worker's started never sees the job
// before it was counted in QueueDepth.
func (m *Metrics) enqueued() {
	if m == nil {
		return
	}
	m.QueueDepth.Inc()
}

// rejected undoes enqueued for a push that failed.
func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
}

func (m *Metrics) submitted() {
	if m == nil {
		return
	}
	m.JobsSubmitted.Inc()
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
	m.QueueDepth.Dec()
	m.BusyWorkers.Inc()
}

func (m *Metrics) finished(took time.Duration) {
	if m == nil {
		return
	}
	m.BusyWorkers.Dec()
	m.JobDuration.Observe(took.Seconds())
}

func (m *Metrics) panicked() {
	if m == nil {
		return
	}
	m.JobsPanicked.Inc()
}
