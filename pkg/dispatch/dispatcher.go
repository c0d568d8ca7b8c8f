// Package dispatch connects emitted cluster events to the rule engine and
// launches playbook runs for every match.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/medik/pkg/metrics"
	"github.com/codeready-toolchain/medik/pkg/models"
	"github.com/codeready-toolchain/medik/pkg/rules"
)

// EventStore persists events for the audit trail. May be nil-backed via a
// no-op implementation when no database is configured.
type EventStore interface {
	AppendEvent(ctx context.Context, event models.ClusterEvent) error
}

// Runner starts playbook runs. Implemented by the executor.
type Runner interface {
	Execute(ctx context.Context, playbookID string, incident map[string]string, target models.ReplyTarget, requestedBy string) (models.PlaybookRun, error)
}

// Dispatcher routes events through persistence and rule evaluation.
type Dispatcher struct {
	engine        *rules.Engine
	runner        Runner
	store         EventStore
	defaultTarget models.ReplyTarget
	logger        *slog.Logger
}

// New creates a dispatcher. store may be nil; defaultTarget is where run
// progress and approval questions for automated runs are posted.
func New(engine *rules.Engine, runner Runner, store EventStore, defaultTarget models.ReplyTarget) *Dispatcher {
	return &Dispatcher{
		engine:        engine,
		runner:        runner,
		store:         store,
		defaultTarget: defaultTarget,
		logger:        slog.Default().With("component", "dispatcher"),
	}
}

// HandleEvent persists the event, evaluates the rules, and starts a
// playbook run per match. Persistence failures are logged but do not stop
// dispatch; the audit trail is best-effort. Resolved alerts are persisted
// without triggering rules.
func (d *Dispatcher) HandleEvent(ctx context.Context, event models.ClusterEvent) error {
	if d.store != nil {
		if err := d.store.AppendEvent(ctx, event); err != nil {
			d.logger.Error("Failed to persist event",
				"event_type", event.Type, "resource", event.ResourceKey(), "error", err)
		}
	}

	if event.Status == models.AlertStatusResolved {
		d.logger.Info("Alert resolved, skipping rule evaluation",
			"resource", event.ResourceKey(), "message", event.Message)
		return nil
	}

	matches := d.engine.Evaluate(event)
	if len(matches) == 0 {
		return nil
	}

	var firstErr error
	for _, match := range matches {
		metrics.RuleMatches.WithLabelValues(match.Rule.ID).Inc()
		d.logger.Info("Rule matched",
			"rule_id", match.Rule.ID,
			"playbook_id", match.PlaybookID,
			"event_type", event.Type,
			"resource", event.ResourceKey())

		incident := incidentContext(event, match.Rule)
		run, err := d.runner.Execute(ctx, match.PlaybookID, incident, d.defaultTarget, "rule:"+match.Rule.ID)
		if err != nil {
			d.logger.Error("Failed to start playbook run",
				"rule_id", match.Rule.ID, "playbook_id", match.PlaybookID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		d.logger.Info("Playbook run dispatched", "run_id", run.RunID, "status", run.Status)
	}
	return firstErr
}

// incidentContext builds the template substitution context for playbook
// params: the event's identity fields plus the rule's static params.
func incidentContext(event models.ClusterEvent, rule models.Rule) map[string]string {
	incident := map[string]string{
		"resource_name": event.Resource.Name,
		"namespace":     event.Resource.Namespace,
		"resource_kind": event.Resource.Kind,
		"event_type":    string(event.Type),
		"severity":      string(event.Severity),
		"message":       event.Message,
	}
	for key, value := range rule.Params {
		incident[key] = fmt.Sprintf("%v", value)
	}
	return incident
}
