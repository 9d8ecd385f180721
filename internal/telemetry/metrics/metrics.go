// Package metrics defines the Prometheus collectors for the auth gate.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GateDecisionsTotal counts access-control verdicts by result and reason.
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_gate_decisions_total",
			Help: "Access-control gate decisions",
		},
		[]string{"result", "reason"},
	)

	// RateLimitRejectedTotal counts requests rejected by the admission controller.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"operation"},
	)

	// LoginsTotal counts login attempts by login type and outcome.
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_logins_total",
			Help: "Login attempts",
		},
		[]string{"login_type", "result"},
	)

	// SessionsSweptTotal counts sessions evicted by the expiry sweep.
	SessionsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_sessions_swept_total",
			Help: "Expired sessions evicted",
		},
	)
)

func init() {
	prometheus.MustRegister(
		GateDecisionsTotal,
		RateLimitRejectedTotal,
		LoginsTotal,
		SessionsSweptTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
