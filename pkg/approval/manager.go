package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/medik/pkg/metrics"
	"github.com/codeready-toolchain/medik/pkg/models"
	"github.com/codeready-toolchain/medik/pkg/notify"
	"github.com/codeready-toolchain/medik/pkg/tools"
)

const keyPrefix = "approval:"

// expiredRetention is how long a record outlives its logical expiry so that
// late replies get a "no pending approval" answer and lazy expiry can fire
// the resumption callback.
const expiredRetention = 30 * time.Minute

var (
	approveRe = regexp.MustCompile(`(?i)\b(?:approve|yes|confirm)\s+([0-9a-f]{8})\b`)
	rejectRe  = regexp.MustCompile(`(?i)\b(?:reject|no|cancel)\s+([0-9a-f]{8})\b`)
)

// Outcome is the resolution of a pending approval, delivered to the
// resumption callback registered at request time.
type Outcome struct {
	ApprovalID string
	RunID      string
	Status     models.ApprovalStatus
	Output     string
	Err        string
}

// ResumeFunc receives the approval outcome. Invoked at most once, on a
// separate goroutine.
type ResumeFunc func(ctx context.Context, outcome Outcome)

// Request describes a tool call that needs human consent before it runs.
type Request struct {
	ToolName      string
	ToolParams    map[string]any
	Risk          models.RiskLevel
	Description   string
	RequestedBy   string
	ReplyTarget   models.ReplyTarget
	PlaybookRunID string
	IncidentID    string
	OnResolved    ResumeFunc
}

// Manager owns the lifecycle of pending approvals: creation, reply
// processing, dispatch on approval, and expiry.
type Manager struct {
	store    Store
	invoker  tools.Invoker
	notifier notify.Notifier
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	resume map[string]ResumeFunc // approval_id → callback
}

// NewManager creates an approval manager. notifier may be nil
// (approval questions are then only logged).
func NewManager(store Store, invoker tools.Invoker, notifier notify.Notifier, timeout time.Duration) *Manager {
	return &Manager{
		store:    store,
		invoker:  invoker,
		notifier: notifier,
		timeout:  timeout,
		logger:   slog.Default().With("component", "approval-manager"),
		now:      time.Now,
		resume:   make(map[string]ResumeFunc),
	}
}

// Request creates a pending approval, persists it with a TTL, and posts the
// approval question to the reply target. Returns the approval id.
func (m *Manager) Request(ctx context.Context, req Request) (string, error) {
	now := m.now().UTC()
	record := models.PendingApproval{
		ApprovalID:    uuid.NewString(),
		ToolName:      req.ToolName,
		ToolParams:    req.ToolParams,
		Risk:          req.Risk,
		Description:   req.Description,
		RequestedBy:   req.RequestedBy,
		ReplyTarget:   req.ReplyTarget,
		RequestedAt:   now,
		ExpiresAt:     now.Add(m.timeout),
		PlaybookRunID: req.PlaybookRunID,
		IncidentID:    req.IncidentID,
		Status:        models.ApprovalStatusPending,
	}

	value, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encoding approval: %w", err)
	}
	// The store TTL extends past the logical expiry so that lazy expiry can
	// observe the record and notify the executor.
	if err := m.store.SetEx(ctx, keyPrefix+record.ApprovalID, value, m.timeout+expiredRetention); err != nil {
		return "", fmt.Errorf("persisting approval: %w", err)
	}

	if req.OnResolved != nil {
		m.mu.Lock()
		m.resume[record.ApprovalID] = req.OnResolved
		m.mu.Unlock()
	}

	m.logger.Info("Approval requested",
		"approval_id", record.ApprovalID,
		"tool", req.ToolName,
		"risk", req.Risk,
		"requested_by", req.RequestedBy)

	if m.notifier != nil {
		message := BuildRequestMessage(record, m.timeout)
		if err := m.notifier.Notify(ctx, req.ReplyTarget, message); err != nil {
			m.logger.Error("Failed to post approval request",
				"approval_id", record.ApprovalID, "target", req.ReplyTarget.String(), "error", err)
		}
	}

	return record.ApprovalID, nil
}

// ProcessReply checks whether a chat message is an approval or rejection
// command. Returns ("", false) for unrelated messages; otherwise a
// human-readable response and true.
func (m *Manager) ProcessReply(ctx context.Context, text, userID string, from models.ReplyTarget) (string, bool) {
	approveMatch := approveRe.FindStringSubmatch(text)
	rejectMatch := rejectRe.FindStringSubmatch(text)
	if approveMatch == nil && rejectMatch == nil {
		return "", false
	}

	shortID := ""
	approve := approveMatch != nil
	if approve {
		shortID = strings.ToLower(approveMatch[1])
	} else {
		shortID = strings.ToLower(rejectMatch[1])
	}

	record, raw, err := m.findPendingByShortID(ctx, shortID)
	if err != nil {
		m.logger.Error("Approval lookup failed", "short_id", shortID, "error", err)
		return "Could not look up the approval right now, try again shortly.", true
	}
	if record == nil {
		return fmt.Sprintf("No pending approval found for %q. It may have expired.", shortID), true
	}

	if record.ReplyTarget != from {
		// Do not reveal that the approval exists elsewhere.
		m.logger.Warn("Approval reply from unauthorized target",
			"approval_id", record.ApprovalID, "from", from.String())
		return "You are not authorized to act on this approval.", true
	}

	if approve {
		return m.executeApproval(ctx, *record, raw, userID), true
	}
	return m.rejectApproval(ctx, *record, raw, userID), true
}

// ListPending returns the currently pending, unexpired approvals in key
// order.
func (m *Manager) ListPending(ctx context.Context) ([]models.PendingApproval, error) {
	keys, err := m.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	var pending []models.PendingApproval
	for _, key := range keys {
		record, _, err := m.load(ctx, key)
		if err != nil || record == nil {
			continue
		}
		if record.Status == models.ApprovalStatusPending && !record.ExpiredAt(now) {
			pending = append(pending, *record)
		}
	}
	return pending, nil
}

// StartSweeper runs a background task realizing expiry of stale pending
// approvals. Expiry is also realized lazily on reply processing, so the
// sweeper only bounds how late the executor learns about it.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepExpired(ctx)
			}
		}
	}()
}

func (m *Manager) sweepExpired(ctx context.Context) {
	keys, err := m.store.Keys(ctx, keyPrefix)
	if err != nil {
		m.logger.Warn("Expiry sweep failed", "error", err)
		return
	}
	now := m.now().UTC()
	for _, key := range keys {
		record, raw, err := m.load(ctx, key)
		if err != nil || record == nil {
			continue
		}
		if record.Status == models.ApprovalStatusPending && record.ExpiredAt(now) {
			m.expire(ctx, *record, raw)
		}
	}
}

// findPendingByShortID scans stored approvals for one whose id begins with
// the short handle and is still pending. Keys are visited in lexicographic
// order, so on a handle collision the smallest full approval id wins.
// Stale pending records encountered during the scan are expired in passing.
func (m *Manager) findPendingByShortID(ctx context.Context, shortID string) (*models.PendingApproval, []byte, error) {
	keys, err := m.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, nil, err
	}
	now := m.now().UTC()
	for _, key := range keys {
		if !strings.HasPrefix(strings.TrimPrefix(key, keyPrefix), shortID) {
			continue
		}
		record, raw, err := m.load(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		if record == nil || record.Status != models.ApprovalStatusPending {
			continue
		}
		if record.ExpiredAt(now) {
			m.expire(ctx, *record, raw)
			continue
		}
		return record, raw, nil
	}
	return nil, nil, nil
}

func (m *Manager) load(ctx context.Context, key string) (*models.PendingApproval, []byte, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var record models.PendingApproval
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, nil, fmt.Errorf("decoding approval %s: %w", key, err)
	}
	return &record, raw, nil
}

// executeApproval transitions pending → approved, dispatches the tool call,
// and records the terminal outcome.
func (m *Manager) executeApproval(ctx context.Context, record models.PendingApproval, raw []byte, approvedBy string) string {
	ok := m.transition(ctx, &record, raw, models.ApprovalStatusApproved)
	if !ok {
		// A concurrent reply won the race.
		return fmt.Sprintf("No pending approval found for %q. It may have expired.", record.ShortID())
	}

	m.logger.Info("Approval granted, executing tool",
		"approval_id", record.ApprovalID,
		"tool", record.ToolName,
		"approved_by", approvedBy)

	output, err := m.invoker.Call(ctx, record.ToolName, record.ToolParams)
	if err != nil {
		m.finalize(ctx, record, models.ApprovalStatusExecutionFailed)
		m.fireResume(record, Outcome{
			ApprovalID: record.ApprovalID,
			RunID:      record.PlaybookRunID,
			Status:     models.ApprovalStatusExecutionFailed,
			Err:        err.Error(),
		})
		return fmt.Sprintf("Execution of %q failed: %v", record.Description, err)
	}

	m.finalize(ctx, record, models.ApprovalStatusExecuted)
	m.fireResume(record, Outcome{
		ApprovalID: record.ApprovalID,
		RunID:      record.PlaybookRunID,
		Status:     models.ApprovalStatusExecuted,
		Output:     output,
	})
	return fmt.Sprintf("%s executed successfully.\n\n%s", record.Description, truncate(output, 800))
}

func (m *Manager) rejectApproval(ctx context.Context, record models.PendingApproval, raw []byte, rejectedBy string) string {
	ok := m.transition(ctx, &record, raw, models.ApprovalStatusRejected)
	if !ok {
		return fmt.Sprintf("No pending approval found for %q. It may have expired.", record.ShortID())
	}

	m.logger.Info("Approval rejected",
		"approval_id", record.ApprovalID, "rejected_by", rejectedBy)
	metrics.ApprovalsResolved.WithLabelValues(string(models.ApprovalStatusRejected)).Inc()

	m.fireResume(record, Outcome{
		ApprovalID: record.ApprovalID,
		RunID:      record.PlaybookRunID,
		Status:     models.ApprovalStatusRejected,
		Err:        "approval rejected by " + rejectedBy,
	})
	return fmt.Sprintf("Action %q rejected by %s.", record.Description, rejectedBy)
}

func (m *Manager) expire(ctx context.Context, record models.PendingApproval, raw []byte) {
	if !m.transition(ctx, &record, raw, models.ApprovalStatusExpired) {
		return
	}
	m.logger.Info("Approval expired", "approval_id", record.ApprovalID, "tool", record.ToolName)
	metrics.ApprovalsResolved.WithLabelValues(string(models.ApprovalStatusExpired)).Inc()
	m.fireResume(record, Outcome{
		ApprovalID: record.ApprovalID,
		RunID:      record.PlaybookRunID,
		Status:     models.ApprovalStatusExpired,
		Err:        "approval expired before a reply arrived",
	})
}

// transition performs the compare-and-set from pending to the given status.
// record is updated in place on success.
func (m *Manager) transition(ctx context.Context, record *models.PendingApproval, raw []byte, status models.ApprovalStatus) bool {
	next := *record
	next.Status = status
	value, err := json.Marshal(next)
	if err != nil {
		m.logger.Error("Failed to encode approval transition", "approval_id", record.ApprovalID, "error", err)
		return false
	}
	ok, err := m.store.CompareAndSet(ctx, keyPrefix+record.ApprovalID, raw, value, expiredRetention)
	if err != nil {
		m.logger.Error("Approval CAS failed", "approval_id", record.ApprovalID, "error", err)
		return false
	}
	if ok {
		*record = next
	}
	return ok
}

// finalize writes the terminal status after a transition to approved. The
// winner of the CAS is the single writer, so a plain write is safe here.
func (m *Manager) finalize(ctx context.Context, record models.PendingApproval, status models.ApprovalStatus) {
	record.Status = status
	value, err := json.Marshal(record)
	if err != nil {
		m.logger.Error("Failed to encode approval", "approval_id", record.ApprovalID, "error", err)
		return
	}
	if err := m.store.SetEx(ctx, keyPrefix+record.ApprovalID, value, expiredRetention); err != nil {
		m.logger.Error("Failed to persist approval status",
			"approval_id", record.ApprovalID, "status", status, "error", err)
	}
	metrics.ApprovalsResolved.WithLabelValues(string(status)).Inc()
}

// fireResume invokes the registered resumption callback at most once.
func (m *Manager) fireResume(record models.PendingApproval, outcome Outcome) {
	m.mu.Lock()
	callback, ok := m.resume[record.ApprovalID]
	delete(m.resume, record.ApprovalID)
	m.mu.Unlock()
	if !ok {
		if record.PlaybookRunID != "" {
			// Happens after a process restart: the approval persisted but the
			// in-memory callback did not.
			m.logger.Warn("No resumption callback registered",
				"approval_id", record.ApprovalID, "run_id", record.PlaybookRunID)
		}
		return
	}
	go callback(context.Background(), outcome)
}

// truncate caps s at max characters. Cutting at a rune boundary keeps the
// chat reply valid UTF-8.
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
