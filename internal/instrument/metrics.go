// Package instrument holds the daemon's own Prometheus metrics.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "telemetryd"

// Observation outcomes.
const (
	OutcomeAccepted       = "accepted"
	OutcomeConditionFalse = "condition_false"
	OutcomeInvalidValue   = "invalid_value"
	OutcomeLate           = "late"
	OutcomeFuture         = "too_far_ahead"
	OutcomeAfterFinish    = "after_finish"
	OutcomeBoundaryDrop   = "boundary_dropped"
)

// Metrics is shared by every component of the daemon.
// A nil registry yields working but unregistered collectors, which tests use.
type Metrics struct {
	Observations     *prometheus.CounterVec
	BucketsFlushed   *prometheus.CounterVec
	CarryOvers       *prometheus.CounterVec
	Dumps            *prometheus.CounterVec
	ConditionChanges *prometheus.CounterVec
	Pulls            *prometheus.CounterVec
	PullDuration     *prometheus.HistogramVec
	ReportWrites     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Observations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_metric_observations_total",
			Help:      "Observations offered to value metrics, by outcome.",
		}, []string{"metric", "outcome"}),
		BucketsFlushed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_metric_buckets_flushed_total",
			Help:      "Bucket records archived per metric.",
		}, []string{"metric"}),
		CarryOvers: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_metric_carry_overs_total",
			Help:      "Dimension keys seeded into the next bucket at a scheduled pull boundary.",
		}, []string{"metric"}),
		Dumps: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_metric_dumps_total",
			Help:      "Reports dumped per metric.",
		}, []string{"metric"}),
		ConditionChanges: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_changes_total",
			Help:      "Condition state transitions.",
		}, []string{"condition"}),
		Pulls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulls_total",
			Help:      "Scheduled and on-demand pulls by tag and status.",
		}, []string{"tag", "status"}),
		PullDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pull_duration_seconds",
			Help:      "Time spent collecting one pull batch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"tag"}),
		ReportWrites: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_writes_total",
			Help:      "Report persistence attempts by status.",
		}, []string{"status"}),
	}
}
