// Package payment implements the bounded payment status polling loop.
// This file registers the Prometheus instruments for poll job outcomes.
package payment

import "github.com/prometheus/client_golang/prometheus"

var (
	pollJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_payment_poll_jobs_total",
			Help: "Finished payment poll jobs by outcome (resolved, timed_out, failed, canceled).",
		},
		[]string{"outcome"},
	)

	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_payment_poll_jobs_active",
			Help: "Payment poll jobs currently pending.",
		},
	)
)

func init() {
	prometheus.MustRegister(pollJobs, activeJobs)
}
