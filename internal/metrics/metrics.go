package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthOperationsTotal counts auth operations by outcome.
	AuthOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Total number of auth operations by operation and result.",
	}, []string{"operation", "result"})

	// GateDenialsTotal counts requests rejected by the access gate.
	GateDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_gate_denials_total",
		Help: "Total number of requests rejected by the access gate by reason.",
	}, []string{"reason"})

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter by route.",
	}, []string{"route"})
)

// ObserveOperation records the outcome of an auth operation.
func ObserveOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	AuthOperationsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveDenial records an access gate rejection.
func ObserveDenial(reason string) {
	GateDenialsTotal.WithLabelValues(reason).Inc()
}
