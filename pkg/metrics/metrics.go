package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "marketplace", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "marketplace", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// ProjectionWriteFailures counts dual writes that left the stores inconsistent, by failing store.
	ProjectionWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "marketplace", Name: "projection_write_failures_total", Help: "Dual writes that failed, by failing store."},
		[]string{"origin"},
	)
	BestEffortFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "marketplace", Name: "best_effort_failures_total", Help: "Swallowed failures of background or enrichment operations."},
		[]string{"op"},
	)
	ReconcilePruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "marketplace", Name: "reconcile_pruned_total", Help: "Stale ids pruned from denormalized lists."},
		[]string{"field"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ProjectionWriteFailures)
	reg.MustRegister(BestEffortFailures)
	reg.MustRegister(ReconcilePruned)
}
