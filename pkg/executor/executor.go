// Package executor drives playbook runs: low-risk steps execute inline,
// medium/high-risk steps suspend the run behind a pending approval, and
// approval outcomes resume or fail it.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/medik/pkg/approval"
	"github.com/codeready-toolchain/medik/pkg/metrics"
	"github.com/codeready-toolchain/medik/pkg/models"
	"github.com/codeready-toolchain/medik/pkg/notify"
	"github.com/codeready-toolchain/medik/pkg/playbook"
	"github.com/codeready-toolchain/medik/pkg/tools"
)

// maxStepOutput is the per-step summary length kept on the run.
const maxStepOutput = 600

// Approver is the slice of the approval manager the executor depends on.
type Approver interface {
	Request(ctx context.Context, req approval.Request) (string, error)
}

// CompleteFunc is invoked when a run reaches a terminal status. Errors are
// logged and swallowed.
type CompleteFunc func(runID string, success bool, errMsg string) error

// Executor runs playbooks from the registry against incident contexts.
type Executor struct {
	registry  *playbook.Registry
	invoker   tools.Invoker
	approvals Approver
	notifier  notify.Notifier

	// autoRemediation downgrades MEDIUM steps to LOW. HIGH is never
	// auto-approved.
	autoRemediation bool
	onComplete      CompleteFunc

	runs   *runStore
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithAutoRemediation enables the system-wide MEDIUM→LOW downgrade.
func WithAutoRemediation(enabled bool) Option {
	return func(e *Executor) { e.autoRemediation = enabled }
}

// WithNotifier attaches a progress notifier. Notification errors are
// swallowed.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Executor) { e.notifier = n }
}

// WithOnComplete attaches a terminal-status hook.
func WithOnComplete(fn CompleteFunc) Option {
	return func(e *Executor) { e.onComplete = fn }
}

// New creates an executor.
func New(registry *playbook.Registry, invoker tools.Invoker, approvals Approver, opts ...Option) *Executor {
	e := &Executor{
		registry:  registry,
		invoker:   invoker,
		approvals: approvals,
		runs:      newRunStore(),
		logger:    slog.Default().With("component", "playbook-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute starts a playbook run and advances it until it completes, fails,
// or suspends awaiting approval. The returned run is a snapshot; failures
// inside steps are captured on the run, not returned as errors.
func (e *Executor) Execute(ctx context.Context, playbookID string, incident map[string]string, target models.ReplyTarget, requestedBy string) (models.PlaybookRun, error) {
	pb, ok := e.registry.Get(playbookID)
	if !ok {
		return models.PlaybookRun{}, fmt.Errorf("no such playbook %q", playbookID)
	}

	run := &models.PlaybookRun{
		RunID:           uuid.NewString(),
		PlaybookID:      playbookID,
		IncidentContext: incident,
		Status:          models.RunStatusPending,
		ReplyTarget:     target,
		RequestedBy:     requestedBy,
		StartedAt:       time.Now().UTC(),
	}
	e.runs.put(run)

	e.logger.Info("Playbook run started",
		"run_id", run.RunID, "playbook_id", playbookID, "requested_by", requestedBy)

	e.advance(ctx, run.RunID, pb)
	snapshot, _ := e.runs.snapshot(run.RunID)
	return snapshot, nil
}

// Run returns a snapshot of a run by id.
func (e *Executor) Run(runID string) (models.PlaybookRun, bool) {
	return e.runs.snapshot(runID)
}

// ResumeFunc returns the approval resumption callback bound to a run. The
// approval manager invokes it once the gated tool call resolved.
func (e *Executor) ResumeFunc(runID string) approval.ResumeFunc {
	return func(ctx context.Context, outcome approval.Outcome) {
		e.handleOutcome(ctx, runID, outcome)
	}
}

// advance executes steps starting at the run's current step until the run
// suspends or reaches a terminal status.
func (e *Executor) advance(ctx context.Context, runID string, pb models.Playbook) {
	e.runs.update(runID, func(r *models.PlaybookRun) {
		r.Status = models.RunStatusRunning
	})

	for {
		run, ok := e.runs.snapshot(runID)
		if !ok {
			return
		}
		if run.CurrentStep >= len(pb.Steps) {
			e.complete(runID)
			return
		}
		step := pb.Steps[run.CurrentStep]
		params := playbook.ResolveParams(step.Params, run.IncidentContext)

		risk := step.Risk
		if e.autoRemediation && risk == models.RiskMedium {
			risk = models.RiskLow
		}

		if risk.RequiresApproval() {
			e.suspend(ctx, runID, run, step, params)
			return
		}

		output, err := e.invoker.Call(ctx, step.ToolName, params)
		if err != nil {
			e.fail(runID, fmt.Sprintf("step %q: %v", step.Name, err))
			return
		}
		if step.SuccessPattern != "" {
			matched, reErr := regexp.MatchString(step.SuccessPattern, output)
			if reErr != nil || !matched {
				e.fail(runID, fmt.Sprintf("step %q output did not match success pattern", step.Name))
				return
			}
		}

		e.runs.update(runID, func(r *models.PlaybookRun) {
			r.StepOutputs = append(r.StepOutputs, truncate(output, maxStepOutput))
			r.Status = models.RunStatusRunning
			r.CurrentStep++
		})
		e.notifyProgress(ctx, run.ReplyTarget, fmt.Sprintf("Step %q completed for playbook %s.", step.Name, run.PlaybookID))
	}
}

// suspend creates a pending approval for the gated step and parks the run.
func (e *Executor) suspend(ctx context.Context, runID string, run models.PlaybookRun, step models.PlaybookStep, params map[string]any) {
	approvalID, err := e.approvals.Request(ctx, approval.Request{
		ToolName:      step.ToolName,
		ToolParams:    params,
		Risk:          step.Risk,
		Description:   step.Description,
		RequestedBy:   run.RequestedBy,
		ReplyTarget:   run.ReplyTarget,
		PlaybookRunID: runID,
		IncidentID:    run.IncidentContext["incident_id"],
		OnResolved:    e.ResumeFunc(runID),
	})
	if err != nil {
		e.fail(runID, fmt.Sprintf("step %q: requesting approval: %v", step.Name, err))
		return
	}

	e.runs.update(runID, func(r *models.PlaybookRun) {
		r.Status = models.RunStatusAwaitingApproval
	})
	e.logger.Info("Playbook run awaiting approval",
		"run_id", runID, "step", step.Name, "approval_id", approvalID, "risk", step.Risk)
}

// handleOutcome resumes or fails the run once its pending approval
// resolved. The approved tool call was already executed by the approval
// manager; its output becomes the gated step's output.
func (e *Executor) handleOutcome(ctx context.Context, runID string, outcome approval.Outcome) {
	run, ok := e.runs.snapshot(runID)
	if !ok {
		e.logger.Warn("Approval outcome for unknown run", "run_id", runID)
		return
	}

	switch outcome.Status {
	case models.ApprovalStatusExecuted:
		pb, ok := e.registry.Get(run.PlaybookID)
		if !ok {
			e.fail(runID, fmt.Sprintf("playbook %q disappeared from registry", run.PlaybookID))
			return
		}
		if run.CurrentStep < len(pb.Steps) {
			step := pb.Steps[run.CurrentStep]
			if step.SuccessPattern != "" {
				matched, reErr := regexp.MatchString(step.SuccessPattern, outcome.Output)
				if reErr != nil || !matched {
					e.fail(runID, fmt.Sprintf("step %q output did not match success pattern", step.Name))
					return
				}
			}
		}
		e.runs.update(runID, func(r *models.PlaybookRun) {
			r.StepOutputs = append(r.StepOutputs, truncate(outcome.Output, maxStepOutput))
			r.Status = models.RunStatusRunning
			r.CurrentStep++
		})
		e.advance(ctx, runID, pb)
	case models.ApprovalStatusRejected:
		e.fail(runID, "approval rejected: "+outcome.Err)
	case models.ApprovalStatusExpired:
		e.fail(runID, "approval expired: "+outcome.Err)
	case models.ApprovalStatusExecutionFailed:
		e.fail(runID, "approved tool call failed: "+outcome.Err)
	default:
		e.fail(runID, fmt.Sprintf("unexpected approval outcome %q", outcome.Status))
	}
}

func (e *Executor) complete(runID string) {
	e.runs.update(runID, func(r *models.PlaybookRun) {
		r.Status = models.RunStatusCompleted
	})
	metrics.RunsFinished.WithLabelValues(string(models.RunStatusCompleted)).Inc()
	e.logger.Info("Playbook run completed", "run_id", runID)
	e.fireOnComplete(runID, true, "")
}

func (e *Executor) fail(runID, errMsg string) {
	e.runs.update(runID, func(r *models.PlaybookRun) {
		r.Status = models.RunStatusFailed
		r.Error = errMsg
	})
	metrics.RunsFinished.WithLabelValues(string(models.RunStatusFailed)).Inc()
	e.logger.Error("Playbook run failed", "run_id", runID, "error", errMsg)
	e.fireOnComplete(runID, false, errMsg)
}

func (e *Executor) fireOnComplete(runID string, success bool, errMsg string) {
	if e.onComplete == nil {
		return
	}
	if err := e.onComplete(runID, success, errMsg); err != nil {
		e.logger.Error("Run completion hook failed", "run_id", runID, "error", err)
	}
}

func (e *Executor) notifyProgress(ctx context.Context, target models.ReplyTarget, message string) {
	if e.notifier == nil || target.IsZero() {
		return
	}
	if err := e.notifier.Notify(ctx, target, message); err != nil {
		e.logger.Warn("Progress notification failed", "target", target.String(), "error", err)
	}
}

// truncate caps s at max characters. Cutting at a rune boundary keeps the
// summary valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
