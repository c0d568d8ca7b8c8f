package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// fakeInvoker records tool calls and returns a canned result.
type fakeInvoker struct {
	mu     sync.Mutex
	calls  []string
	output string
	err    error
}

func (f *fakeInvoker) Call(ctx context.Context, toolName string, params map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toolName)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeNotifier records posted messages.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, target models.ReplyTarget, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeNotifier) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func newTestManager(t *testing.T) (*Manager, *fakeInvoker, *fakeNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	invoker := &fakeInvoker{output: "pod deleted"}
	notifier := &fakeNotifier{}
	m := NewManager(NewRedisStoreFromClient(client), invoker, notifier, 5*time.Minute)
	return m, invoker, notifier
}

var testTarget = models.ReplyTarget{ChannelType: "slack", ChannelID: "C123"}

func testRequest(onResolved ResumeFunc) Request {
	return Request{
		ToolName:      "k8s_restart_pod",
		ToolParams:    map[string]any{"pod_name": "api-1", "namespace": "payments"},
		Risk:          models.RiskMedium,
		Description:   "Delete pod to trigger fresh restart",
		RequestedBy:   "rule:rule-001",
		ReplyTarget:   testTarget,
		PlaybookRunID: "run-42",
		OnResolved:    onResolved,
	}
}

func TestRequestPostsApprovalQuestion(t *testing.T) {
	m, _, notifier := newTestManager(t)
	ctx := context.Background()

	id, err := m.Request(ctx, testRequest(nil))
	require.NoError(t, err)
	require.Len(t, id, 36, "approval id is a uuid")

	short := id[:models.ShortHandleLength]
	message := notifier.last()
	assert.Contains(t, message, "Approval required [MEDIUM]")
	assert.Contains(t, message, fmt.Sprintf("approve %s", short))
	assert.Contains(t, message, fmt.Sprintf("reject %s", short))
	assert.Contains(t, message, "expires in 5 minutes")
	assert.Contains(t, message, "k8s_restart_pod")

	pending, err := m.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ApprovalStatusPending, pending[0].Status)
}

func TestRequestHighRiskWarning(t *testing.T) {
	m, _, notifier := newTestManager(t)

	req := testRequest(nil)
	req.Risk = models.RiskHigh
	_, err := m.Request(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, notifier.last(), "HIGH RISK ACTION")
}

func TestRequestNotifierFailureIsNonFatal(t *testing.T) {
	m, _, notifier := newTestManager(t)
	notifier.err = errors.New("slack is down")

	_, err := m.Request(context.Background(), testRequest(nil))
	assert.NoError(t, err, "an unreachable channel must not lose the approval")
}

func TestProcessReplyApprove(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		outcome *Outcome
	)
	id, err := m.Request(ctx, testRequest(func(ctx context.Context, o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcome = &o
	}))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	response, handled := m.ProcessReply(ctx, "approve "+short, "alice", testTarget)
	require.True(t, handled)
	assert.Contains(t, response, "executed successfully")
	assert.Contains(t, response, "pod deleted")
	assert.Equal(t, 1, invoker.callCount())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return outcome != nil
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, models.ApprovalStatusExecuted, outcome.Status)
	assert.Equal(t, "run-42", outcome.RunID)
	assert.Equal(t, "pod deleted", outcome.Output)
}

func TestProcessReplyApproveSynonymsAndCase(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Request(ctx, testRequest(nil))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	_, handled := m.ProcessReply(ctx, "YES "+short+" go ahead", "alice", testTarget)
	require.True(t, handled)
	assert.Equal(t, 1, invoker.callCount())
}

func TestProcessReplyIdempotent(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Request(ctx, testRequest(nil))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	_, handled := m.ProcessReply(ctx, "approve "+short, "alice", testTarget)
	require.True(t, handled)

	response, handled := m.ProcessReply(ctx, "approve "+short, "bob", testTarget)
	require.True(t, handled)
	assert.Contains(t, response, "No pending approval")
	assert.Equal(t, 1, invoker.callCount(), "a resolved approval never executes twice")
}

func TestProcessReplyReject(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		outcome *Outcome
	)
	id, err := m.Request(ctx, testRequest(func(ctx context.Context, o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcome = &o
	}))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	response, handled := m.ProcessReply(ctx, "reject "+short, "alice", testTarget)
	require.True(t, handled)
	assert.Contains(t, response, "rejected by alice")
	assert.Equal(t, 0, invoker.callCount())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return outcome != nil && outcome.Status == models.ApprovalStatusRejected
	}, time.Second, 10*time.Millisecond)
}

func TestProcessReplyUnauthorizedTarget(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Request(ctx, testRequest(nil))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	elsewhere := models.ReplyTarget{ChannelType: "slack", ChannelID: "C999"}
	response, handled := m.ProcessReply(ctx, "approve "+short, "mallory", elsewhere)
	require.True(t, handled)
	assert.Equal(t, "You are not authorized to act on this approval.", response)
	assert.Equal(t, 0, invoker.callCount())

	// The approval stays actionable from the right channel.
	_, handled = m.ProcessReply(ctx, "approve "+short, "alice", testTarget)
	require.True(t, handled)
	assert.Equal(t, 1, invoker.callCount())
}

func TestProcessReplyUnrelatedMessage(t *testing.T) {
	m, _, _ := newTestManager(t)

	response, handled := m.ProcessReply(context.Background(), "what is the weather", "alice", testTarget)
	assert.False(t, handled)
	assert.Empty(t, response)
}

func TestProcessReplyUnknownShortID(t *testing.T) {
	m, _, _ := newTestManager(t)

	response, handled := m.ProcessReply(context.Background(), "approve deadbeef", "alice", testTarget)
	require.True(t, handled)
	assert.Contains(t, response, "No pending approval")
}

func TestExpiredApprovalCannotBeApproved(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		outcome *Outcome
	)
	id, err := m.Request(ctx, testRequest(func(ctx context.Context, o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcome = &o
	}))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	// Jump past the logical expiry; the record is still physically present.
	m.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	response, handled := m.ProcessReply(ctx, "approve "+short, "alice", testTarget)
	require.True(t, handled)
	assert.Contains(t, response, "No pending approval")
	assert.Equal(t, 0, invoker.callCount())

	// Lazy expiry fires the resumption callback.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return outcome != nil && outcome.Status == models.ApprovalStatusExpired
	}, time.Second, 10*time.Millisecond)
}

func TestExecutionFailureReported(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	invoker.err = errors.New("tool server timeout")
	ctx := context.Background()

	var (
		mu      sync.Mutex
		outcome *Outcome
	)
	id, err := m.Request(ctx, testRequest(func(ctx context.Context, o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcome = &o
	}))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	response, handled := m.ProcessReply(ctx, "approve "+short, "alice", testTarget)
	require.True(t, handled)
	assert.Contains(t, response, "failed")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return outcome != nil && outcome.Status == models.ApprovalStatusExecutionFailed
	}, time.Second, 10*time.Millisecond)
}

func TestApprovalResultTruncation(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	longOutput := ""
	for i := 0; i < 100; i++ {
		longOutput += "0123456789"
	}
	invoker.output = longOutput
	ctx := context.Background()

	id, err := m.Request(ctx, testRequest(nil))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	response, handled := m.ProcessReply(ctx, "approve "+short, "alice", testTarget)
	require.True(t, handled)
	assert.LessOrEqual(t, len(response), 800+100, "tool output is truncated to 800 characters")
	assert.Contains(t, response, "...")
}

func TestApprovalResultTruncationKeepsValidUTF8(t *testing.T) {
	m, invoker, _ := newTestManager(t)
	invoker.output = strings.Repeat("nœud prêt\n", 120)
	ctx := context.Background()

	id, err := m.Request(ctx, testRequest(nil))
	require.NoError(t, err)
	short := id[:models.ShortHandleLength]

	response, handled := m.ProcessReply(ctx, "approve "+short, "alice", testTarget)
	require.True(t, handled)
	assert.True(t, utf8.ValidString(response), "truncation must not split a rune")
	assert.True(t, strings.HasSuffix(response, "..."))
}

func TestSweeperExpiresStaleApprovals(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.Request(ctx, testRequest(nil))
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	m.StartSweeper(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		pending, err := m.ListPending(ctx)
		return err == nil && len(pending) == 0
	}, time.Second, 10*time.Millisecond)
}
