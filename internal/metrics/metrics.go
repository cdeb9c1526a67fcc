// Package metrics exposes Prometheus counters for the task lifecycle and the
// deadline sweeper, and serves them together with a health check.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reasons used as label values of reports_rejected_total.
const (
	ReasonNoActiveTask = "no_active_task"
	ReasonInvalid      = "invalid"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tasksAssigned        prometheus.Counter
	reportsAccepted      prometheus.Counter
	reportsRejected      *prometheus.CounterVec
	tasksExpired         prometheus.Counter
	notificationFailures prometheus.Counter
	pointsCredited       prometheus.Counter
	sweepDuration        prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_tasks_assigned_total",
			Help: "Total tasks assigned by admins",
		}),
		reportsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_reports_accepted_total",
			Help: "Total reports that completed a task",
		}),
		reportsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskbot_reports_rejected_total",
				Help: "Total report submissions that did not complete a task",
			},
			[]string{"reason"},
		),
		tasksExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_tasks_expired_total",
			Help: "Total tasks moved to expired by the deadline sweeper",
		}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_notification_failures_total",
			Help: "Total expiry notifications that could not be delivered",
		}),
		pointsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskbot_ledger_entries_total",
			Help: "Total reward ledger entries appended",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskbot_sweep_duration_seconds",
			Help:    "Duration of deadline sweep ticks",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.tasksAssigned,
		m.reportsAccepted,
		m.reportsRejected,
		m.tasksExpired,
		m.notificationFailures,
		m.pointsCredited,
		m.sweepDuration,
	)
	return m
}

func (m *Metrics) TaskAssigned() {
	if m == nil {
		return
	}
	m.tasksAssigned.Inc()
}

func (m *Metrics) ReportAccepted() {
	if m == nil {
		return
	}
	m.reportsAccepted.Inc()
}

func (m *Metrics) ReportRejected(reason string) {
	if m == nil {
		return
	}
	m.reportsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) TasksExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tasksExpired.Add(float64(n))
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

func (m *Metrics) LedgerEntryAdded() {
	if m == nil {
		return
	}
	m.pointsCredited.Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}
