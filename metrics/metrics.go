package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedemptionsTotal counts redemption batches by terminal status.
	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "delegation_engine",
		Name:      "redemptions_total",
		Help:      "Redemption batches processed, labelled by terminal status.",
	}, []string{"status"})

	// HookFailuresTotal counts enforcer hook failures by phase.
	HookFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "delegation_engine",
		Name:      "hook_failures_total",
		Help:      "Caveat enforcer hook failures, labelled by pipeline phase.",
	}, []string{"phase"})

	// ExecutionsTotal counts execution dispatches by exec type and outcome.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "delegation_engine",
		Name:      "executions_total",
		Help:      "Executor dispatches, labelled by exec type and outcome.",
	}, []string{"exec_type", "status"})

	// RedemptionDuration observes end-to-end batch latency.
	RedemptionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "delegation_engine",
		Name:      "redemption_duration_seconds",
		Help:      "End-to-end redemption batch duration.",
		Buckets:   prometheus.DefBuckets,
	})
)
