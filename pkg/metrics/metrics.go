package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quantlens", Name: "gate_decisions_total", Help: "Number of gate decisions by outcome."},
		[]string{"decision"},
	)
	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "quantlens", Name: "sessions_created_total", Help: "Number of sessions created."},
	)
	SessionsDestroyed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quantlens", Name: "sessions_destroyed_total", Help: "Number of sessions destroyed by reason."},
		[]string{"reason"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quantlens", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "quantlens", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(GateDecisions)
	reg.MustRegister(SessionsCreated)
	reg.MustRegister(SessionsDestroyed)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
