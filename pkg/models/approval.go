package models

import "time"

// ApprovalStatus tracks the lifecycle of a pending approval. Exactly one
// terminal transition happens; once terminal the record is immutable.
type ApprovalStatus string

// Approval status constants.
const (
	ApprovalStatusPending         ApprovalStatus = "pending"
	ApprovalStatusApproved        ApprovalStatus = "approved"
	ApprovalStatusRejected        ApprovalStatus = "rejected"
	ApprovalStatusExpired         ApprovalStatus = "expired"
	ApprovalStatusExecuted        ApprovalStatus = "executed"
	ApprovalStatusExecutionFailed ApprovalStatus = "execution_failed"
)

// IsTerminal reports whether the status ends the approval lifecycle.
// Approved is transitional: it is immediately followed by executed or
// execution_failed.
func (s ApprovalStatus) IsTerminal() bool {
	switch s {
	case ApprovalStatusRejected, ApprovalStatusExpired,
		ApprovalStatusExecuted, ApprovalStatusExecutionFailed:
		return true
	default:
		return false
	}
}

// ShortHandleLength is the number of leading approval-id characters users
// type in chat replies.
const ShortHandleLength = 8

// PendingApproval is a durable record of a tool invocation awaiting human
// consent.
type PendingApproval struct {
	ApprovalID    string         `json:"approval_id"`
	ToolName      string         `json:"tool_name"`
	ToolParams    map[string]any `json:"tool_params"`
	Risk          RiskLevel      `json:"risk_level"`
	Description   string         `json:"description"`
	RequestedBy   string         `json:"requested_by"`
	ReplyTarget   ReplyTarget    `json:"reply_target"`
	RequestedAt   time.Time      `json:"requested_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	PlaybookRunID string         `json:"playbook_run_id,omitempty"`
	IncidentID    string         `json:"incident_id,omitempty"`
	Status        ApprovalStatus `json:"status"`
}

// ShortID returns the 8-character handle embedded in approval messages.
func (a PendingApproval) ShortID() string {
	if len(a.ApprovalID) < ShortHandleLength {
		return a.ApprovalID
	}
	return a.ApprovalID[:ShortHandleLength]
}

// ExpiredAt reports whether the approval's TTL has elapsed at the given
// instant.
func (a PendingApproval) ExpiredAt(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
