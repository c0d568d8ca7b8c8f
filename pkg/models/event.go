// Package models defines the core value types that flow through the
// control plane: cluster events, rules, playbooks, runs, and approvals.
package models

import (
	"fmt"
	"time"
)

// EventType classifies a detected cluster anomaly.
type EventType string

// Event type constants.
const (
	EventTypeCrashLoop           EventType = "crash_loop"
	EventTypeOOMKilled           EventType = "oom_killed"
	EventTypeNotReadyNode        EventType = "not_ready_node"
	EventTypeReplicationFailure  EventType = "replication_failure"
	EventTypeHighRestartCount    EventType = "high_restart_count"
	EventTypeAlertmanagerFiring  EventType = "alertmanager_firing"
	EventTypePrometheusThreshold EventType = "prometheus_threshold"
)

// IsValid checks if the event type is a known variant.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeCrashLoop,
		EventTypeOOMKilled,
		EventTypeNotReadyNode,
		EventTypeReplicationFailure,
		EventTypeHighRestartCount,
		EventTypeAlertmanagerFiring,
		EventTypePrometheusThreshold:
		return true
	default:
		return false
	}
}

// AlertStatus distinguishes firing alerts from resolutions on events that
// originate from Alertmanager.
type AlertStatus string

// Alert status constants.
const (
	AlertStatusFiring   AlertStatus = "firing"
	AlertStatusResolved AlertStatus = "resolved"
)

// ParseAlertStatus maps an external status string to a known variant.
// Unknown values default to firing.
func ParseAlertStatus(s string) AlertStatus {
	if AlertStatus(s) == AlertStatusResolved {
		return AlertStatusResolved
	}
	return AlertStatusFiring
}

// ResourceRef identifies a cluster resource. Namespace is empty for
// cluster-scoped resources such as nodes.
type ResourceRef struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// Key returns the deduplication identity for the resource:
// "{kind}/{namespace}/{name}", or "{kind}/{name}" when cluster-scoped.
func (r ResourceRef) Key() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// ClusterEvent is a normalized representation of a cluster anomaly,
// produced by the watchloop or the alert ingress.
type ClusterEvent struct {
	Type       EventType         `json:"event_type"`
	Severity   Severity          `json:"severity"`
	Resource   ResourceRef       `json:"resource"`
	Message    string            `json:"message"`
	Labels     map[string]string `json:"labels,omitempty"`
	DetectedAt time.Time         `json:"detected_at"`

	// Status is set on alert-originated events only.
	Status AlertStatus `json:"status,omitempty"`
}

// ResourceKey returns the event's deduplication identity.
func (e ClusterEvent) ResourceKey() string {
	return e.Resource.Key()
}
