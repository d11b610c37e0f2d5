package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coverdesk"

// Workflow holds the counters for claim, notification and scheduler activity.
// A nil *Workflow is valid and records nothing.
type Workflow struct {
	claimTransitions  *prometheus.CounterVec
	settlementSigned  prometheus.Counter
	notifications     *prometheus.CounterVec
	identifierRetries *prometheus.CounterVec
	schedulerRuns     *prometheus.CounterVec
	schedulerDuration *prometheus.HistogramVec
}

var (
	defaultOnce     sync.Once
	defaultWorkflow *Workflow
)

// Default returns the process-wide instruments registered on the default registry.
func Default() *Workflow {
	defaultOnce.Do(func() {
		defaultWorkflow = New(prometheus.DefaultRegisterer)
	})
	return defaultWorkflow
}

func New(reg prometheus.Registerer) *Workflow {
	w := &Workflow{
		claimTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_transitions_total",
			Help:      "Claim status transitions by outcome.",
		}, []string{"from", "to", "outcome"}),
		settlementSigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_signed_total",
			Help:      "Settlements signed.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications dispatched by type and outcome.",
		}, []string{"type", "outcome"}),
		identifierRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifier_retries_total",
			Help:      "Create transactions retried after an identifier collision.",
		}, []string{"prefix"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduler job runs by outcome.",
		}, []string{"job", "outcome"}),
		schedulerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Scheduler job duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}

	if reg != nil {
		reg.MustRegister(
			w.claimTransitions,
			w.settlementSigned,
			w.notifications,
			w.identifierRetries,
			w.schedulerRuns,
			w.schedulerDuration,
		)
	}
	return w
}

func (w *Workflow) ClaimTransition(from, to string, err error) {
	if w == nil {
		return
	}
	w.claimTransitions.WithLabelValues(from, to, outcome(err)).Inc()
}

func (w *Workflow) SettlementSigned() {
	if w == nil {
		return
	}
	w.settlementSigned.Inc()
}

func (w *Workflow) Notification(kind string, err error) {
	if w == nil {
		return
	}
	w.notifications.WithLabelValues(kind, outcome(err)).Inc()
}

func (w *Workflow) IdentifierRetry(prefix string) {
	if w == nil {
		return
	}
	w.identifierRetries.WithLabelValues(prefix).Inc()
}

func (w *Workflow) SchedulerJob(job string, duration time.Duration, err error) {
	if w == nil {
		return
	}
	w.schedulerRuns.WithLabelValues(job, outcome(err)).Inc()
	w.schedulerDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
