// Package chat implements the message routing core. This file exposes
// Prometheus instrumentation for the routing pipeline. Label cardinality is
// kept bounded: outcomes and rejection kinds are small fixed sets.
package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	// routedMsgs counts fan-outs by outcome: delivered (at least one handle
	// accepted), partial (some handles failed), offline (no live handles).
	routedMsgs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Total number of routed messages by delivery outcome.",
		},
		[]string{"outcome"},
	)

	// rejectedMsgs counts submissions rejected before routing, by kind
	// (missing_field, empty_body, disallowed_content, self_addressed,
	// sender_mismatch, rate_limited, ...).
	rejectedMsgs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_rejected_total",
			Help: "Total number of rejected submissions by reason.",
		},
		[]string{"reason"},
	)

	// prunedHandles counts connections removed from the registry because a
	// delivery to them failed.
	prunedHandles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dead_handles_pruned_total",
			Help: "Total number of connection handles pruned after failed delivery.",
		},
	)
)

func init() {
	prometheus.MustRegister(routedMsgs, rejectedMsgs, prunedHandles)
}
