// Package metrics exposes the service's Prometheus instrumentation. All
// collectors register themselves on the default registry; the router mounts
// promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts inbound webhook deliveries by event name and
	// processing outcome (applied, duplicate, ignored, rejected, error).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avvance_bridge",
		Name:      "webhook_events_total",
		Help:      "Inbound webhook deliveries by event name and outcome.",
	}, []string{"event", "outcome"})

	// StatusTransitions counts committed session status transitions.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avvance_bridge",
		Name:      "status_transitions_total",
		Help:      "Committed financing session status transitions.",
	}, []string{"to"})

	// SessionsCreated counts financing sessions started at checkout.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "avvance_bridge",
		Name:      "sessions_created_total",
		Help:      "Financing sessions created.",
	})

	// LeadsCreated counts pre-approval leads started.
	LeadsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "avvance_bridge",
		Name:      "leads_created_total",
		Help:      "Pre-approval leads created.",
	})

	// StatusPolls counts manual status poll requests by outcome.
	StatusPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avvance_bridge",
		Name:      "status_polls_total",
		Help:      "Manual status polls by outcome (ok, remote_error, not_found).",
	}, []string{"outcome"})

	// SessionsExpired counts sessions expired by the cleanup sweep.
	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "avvance_bridge",
		Name:      "sessions_expired_total",
		Help:      "Sessions expired by the cleanup sweep.",
	})
)
