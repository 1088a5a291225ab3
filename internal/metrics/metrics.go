package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for register jobs and exports.
type Metrics struct {
	JobsStarted        *prometheus.CounterVec
	JobsRejected       *prometheus.CounterVec
	JobsFinished       *prometheus.CounterVec
	JobDuration        prometheus.Histogram
	RowsRejected       prometheus.Counter
	RecordsStored      prometheus.Counter
	ListenerFailures   prometheus.Counter
	ExportsCompleted   *prometheus.CounterVec
	ExportDuration     prometheus.Histogram
	ExportBytesWritten prometheus.Counter
}

// New registers every metric with reg. Pass prometheus.DefaultRegisterer in production and a
// fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caz_register_jobs_started_total",
			Help: "Register jobs accepted, by trigger",
		}, []string{"trigger"}),
		JobsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caz_register_jobs_rejected_total",
			Help: "Register job start requests refused, by reason",
		}, []string{"reason"}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caz_register_jobs_finished_total",
			Help: "Register jobs that reached a terminal status",
		}, []string{"status"}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caz_register_job_duration_seconds",
			Help:    "Wall time of register job workers",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}),
		RowsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "caz_register_rows_rejected_total",
			Help: "Rows that failed validation",
		}),
		RecordsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "caz_register_records_stored_total",
			Help: "Records persisted by successful register jobs",
		}),
		ListenerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "caz_register_listener_failures_total",
			Help: "Job completion listeners that returned an error",
		}),
		ExportsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caz_exports_total",
			Help: "Database exports, by outcome",
		}, []string{"outcome"}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caz_export_duration_seconds",
			Help:    "Duration of database exports",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}),
		ExportBytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "caz_export_bytes_total",
			Help: "Bytes streamed into export destinations",
		}),
	}
}

// ObserveJob records a finished job. Call with time.Now() taken when the worker started.
func (m *Metrics) ObserveJob(status string, start time.Time, rejectedRows, storedRecords int) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
	m.JobDuration.Observe(time.Since(start).Seconds())
	m.RowsRejected.Add(float64(rejectedRows))
	m.RecordsStored.Add(float64(storedRecords))
}

// IncrementJobStarted counts an accepted job.
func (m *Metrics) IncrementJobStarted(trigger string) {
	if m == nil {
		return
	}
	m.JobsStarted.WithLabelValues(trigger).Inc()
}

// IncrementJobRejected counts a start request refused by the guard.
func (m *Metrics) IncrementJobRejected(reason string) {
	if m == nil {
		return
	}
	m.JobsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementListenerFailure() {
	if m == nil {
		return
	}
	m.ListenerFailures.Inc()
}

// ObserveExport records an export attempt.
func (m *Metrics) ObserveExport(start time.Time, bytes int64, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ExportsCompleted.WithLabelValues(outcome).Inc()
	m.ExportDuration.Observe(time.Since(start).Seconds())
	m.ExportBytesWritten.Add(float64(bytes))
}
