// Package watch implements the periodic cluster scanner. It polls the
// cluster API, detects anomalies, and emits deduplicated ClusterEvents on
// edge transitions: an event fires on the tick a resource enters the
// known-issue set and nothing fires again until the resource leaves it.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/medik/pkg/kube"
	"github.com/codeready-toolchain/medik/pkg/metrics"
	"github.com/codeready-toolchain/medik/pkg/models"
)

// EventCallback receives detected events. Callback errors are logged and
// swallowed; they never abort the loop.
type EventCallback func(ctx context.Context, event models.ClusterEvent) error

// failureReasons are the container waiting reasons treated as crash-loop
// anomalies.
var failureReasons = map[string]bool{
	"CrashLoopBackOff": true,
	"Error":            true,
	"OOMKilled":        true,
	"ImagePullBackOff": true,
	"ErrImagePull":     true,
}

// systemNamespaces are excluded from the deployment scan.
var systemNamespaces = map[string]bool{
	"kube-system":     true,
	"kube-public":     true,
	"kube-node-lease": true,
}

// Loop is the cluster watchloop.
type Loop struct {
	cluster  kube.Cluster
	interval time.Duration
	callback EventCallback
	logger   *slog.Logger

	mu      sync.Mutex
	known   map[string]time.Time // resource_key → first_seen
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now func() time.Time
}

// NewLoop creates a watchloop scanning the cluster at the given interval.
func NewLoop(cluster kube.Cluster, interval time.Duration, callback EventCallback) *Loop {
	return &Loop{
		cluster:  cluster,
		interval: interval,
		callback: callback,
		known:    make(map[string]time.Time),
		logger:   slog.Default().With("component", "watchloop"),
		now:      time.Now,
	}
}

// Start spawns the polling loop. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		l.logger.Warn("Watchloop already started, ignoring duplicate Start call")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true

	l.wg.Add(1)
	go l.run(loopCtx)
	l.logger.Info("Watchloop started", "interval", l.interval.String())
}

// Stop cancels the loop, waits for the in-flight tick to drain, and joins.
// Safe to call on a stopped loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	l.mu.Unlock()

	cancel()
	l.wg.Wait()

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	l.logger.Info("Watchloop stopped")
}

// IsRunning reports whether the loop is live.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// KnownIssueCount returns the current size of the known-issue set.
func (l *Loop) KnownIssueCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.known)
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		if err := l.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("Watchloop tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.interval):
		}
	}
}

// ScanOnce performs a single poll across all anomaly categories. Ticks are
// serial: callers must not overlap invocations.
func (l *Loop) ScanOnce(ctx context.Context) error {
	start := l.now()
	defer func() {
		metrics.WatchTickDuration.Observe(l.now().Sub(start).Seconds())
	}()

	var events []models.ClusterEvent
	events = append(events, l.scanPods(ctx)...)
	events = append(events, l.scanNodes(ctx)...)
	events = append(events, l.scanDeployments(ctx)...)

	for _, event := range events {
		l.logger.Info("Cluster anomaly detected",
			"event_type", event.Type,
			"resource", event.ResourceKey(),
			"severity", event.Severity)
		metrics.EventsEmitted.WithLabelValues(string(event.Type), "watchloop").Inc()
		if l.callback == nil {
			continue
		}
		if err := l.callback(ctx, event); err != nil {
			l.logger.Error("Event callback failed", "resource", event.ResourceKey(), "error", err)
		}
	}

	if len(events) > 0 {
		l.logger.Info("Watchloop tick complete", "events_detected", len(events))
	}
	return ctx.Err()
}

// scanPods detects crash-looping and OOM-killed pods.
func (l *Loop) scanPods(ctx context.Context) []models.ClusterEvent {
	pods, err := l.cluster.ListPods(ctx)
	if err != nil {
		// Skip emit and reap for the category; periodicity is the retry.
		l.logger.Warn("Pod scan failed", "error", err)
		return nil
	}

	var events []models.ClusterEvent
	observed := make(map[string]bool)
	for _, pod := range pods {
		if !failureReasons[pod.WaitingReason] {
			continue
		}
		resource := models.ResourceRef{Kind: "Pod", Namespace: pod.Namespace, Name: pod.Name}
		key := resource.Key()
		observed[key] = true
		if !l.markKnown(key) {
			continue
		}

		eventType := models.EventTypeCrashLoop
		if strings.Contains(pod.WaitingReason, "OOM") {
			eventType = models.EventTypeOOMKilled
		}
		events = append(events, models.ClusterEvent{
			Type:     eventType,
			Severity: models.SeverityCritical,
			Resource: resource,
			Message: fmt.Sprintf("Pod %s in %s is %s (restarts: %d)",
				pod.Name, pod.Namespace, pod.WaitingReason, pod.Restarts),
			Labels:     pod.Labels,
			DetectedAt: l.now().UTC(),
		})
	}
	l.reapRecovered("Pod/", observed)
	return events
}

// scanNodes detects NotReady nodes.
func (l *Loop) scanNodes(ctx context.Context) []models.ClusterEvent {
	nodes, err := l.cluster.ListNodes(ctx)
	if err != nil {
		l.logger.Warn("Node scan failed", "error", err)
		return nil
	}

	var events []models.ClusterEvent
	observed := make(map[string]bool)
	for _, node := range nodes {
		if node.Ready {
			continue
		}
		resource := models.ResourceRef{Kind: "Node", Name: node.Name}
		key := resource.Key()
		observed[key] = true
		if !l.markKnown(key) {
			continue
		}
		events = append(events, models.ClusterEvent{
			Type:       models.EventTypeNotReadyNode,
			Severity:   models.SeverityCritical,
			Resource:   resource,
			Message:    fmt.Sprintf("Node %s is NotReady", node.Name),
			Labels:     node.Labels,
			DetectedAt: l.now().UTC(),
		})
	}
	l.reapRecovered("Node/", observed)
	return events
}

// scanDeployments detects deployments with zero available replicas in
// non-system namespaces.
func (l *Loop) scanDeployments(ctx context.Context) []models.ClusterEvent {
	namespaces, err := l.cluster.ListNamespaces(ctx)
	if err != nil {
		l.logger.Warn("Namespace scan failed", "error", err)
		return nil
	}

	var events []models.ClusterEvent
	observed := make(map[string]bool)
	for _, namespace := range namespaces {
		if systemNamespaces[namespace] {
			continue
		}
		deployments, err := l.cluster.ListDeployments(ctx, namespace)
		if err != nil {
			l.logger.Warn("Deployment scan failed", "namespace", namespace, "error", err)
			// Without a full picture a reap would fabricate recoveries.
			return events
		}
		for _, dep := range deployments {
			if dep.DesiredReplicas <= 0 || dep.AvailableReplicas != 0 {
				continue
			}
			resource := models.ResourceRef{Kind: "Deployment", Namespace: dep.Namespace, Name: dep.Name}
			key := resource.Key()
			observed[key] = true
			if !l.markKnown(key) {
				continue
			}
			events = append(events, models.ClusterEvent{
				Type:     models.EventTypeReplicationFailure,
				Severity: models.SeverityCritical,
				Resource: resource,
				Message: fmt.Sprintf("Deployment %s in %s has 0/%d replicas available",
					dep.Name, dep.Namespace, dep.DesiredReplicas),
				Labels:     dep.Labels,
				DetectedAt: l.now().UTC(),
			})
		}
	}
	l.reapRecovered("Deployment/", observed)
	return events
}

// markKnown inserts the key into the known-issue set. Returns true when the
// key is new, i.e. an event should be emitted for it.
func (l *Loop) markKnown(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.known[key]; exists {
		return false
	}
	l.known[key] = l.now().UTC()
	return true
}

// reapRecovered removes known-issue entries for the category prefix that
// were not observed failing this tick.
func (l *Loop) reapRecovered(prefix string, observed map[string]bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.known {
		if strings.HasPrefix(key, prefix) && !observed[key] {
			delete(l.known, key)
			l.logger.Info("Resource recovered", "resource", key)
		}
	}
}
