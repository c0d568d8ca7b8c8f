package models

import "time"

// RunStatus tracks the state machine of a playbook run. Transitions only
// move forward: pending → running → {awaiting_approval ↔ running} →
// {completed | failed}.
type RunStatus string

// Run status constants.
const (
	RunStatusPending          RunStatus = "pending"
	RunStatusRunning          RunStatus = "running"
	RunStatusAwaitingApproval RunStatus = "awaiting_approval"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusFailed           RunStatus = "failed"
)

// IsTerminal reports whether the status allows no further transitions.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// PlaybookRun is one execution instance of a playbook against a specific
// incident context.
type PlaybookRun struct {
	RunID           string            `json:"run_id"`
	PlaybookID      string            `json:"playbook_id"`
	IncidentContext map[string]string `json:"incident_context"`
	CurrentStep     int               `json:"current_step"`
	Status          RunStatus         `json:"status"`
	StepOutputs     []string          `json:"step_outputs"`
	Error           string            `json:"error,omitempty"`
	ReplyTarget     ReplyTarget       `json:"reply_target"`
	RequestedBy     string            `json:"requested_by"`
	StartedAt       time.Time         `json:"started_at"`
}
