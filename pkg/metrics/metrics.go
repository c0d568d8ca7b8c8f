// Package metrics exposes Prometheus instrumentation for the event
// pipeline. Collectors are registered on the default registerer and served
// from the API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsEmitted counts cluster events entering the pipeline, by type.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medik_events_emitted_total",
		Help: "Cluster events emitted by the watchloop and alert ingress.",
	}, []string{"event_type", "source"})

	// RuleMatches counts rule engine hits, by rule.
	RuleMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medik_rule_matches_total",
		Help: "Rules matched against incoming events.",
	}, []string{"rule_id"})

	// RunsFinished counts playbook runs reaching a terminal status.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medik_playbook_runs_finished_total",
		Help: "Playbook runs by terminal status.",
	}, []string{"status"})

	// ApprovalsResolved counts approval outcomes.
	ApprovalsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medik_approvals_resolved_total",
		Help: "Pending approvals by terminal status.",
	}, []string{"status"})

	// WatchTickDuration observes how long a full watchloop scan takes.
	WatchTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medik_watchloop_tick_duration_seconds",
		Help:    "Duration of a single watchloop scan.",
		Buckets: prometheus.DefBuckets,
	})
)
