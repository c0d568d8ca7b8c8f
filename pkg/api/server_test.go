package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/medik/pkg/approval"
	"github.com/codeready-toolchain/medik/pkg/dispatch"
	"github.com/codeready-toolchain/medik/pkg/executor"
	"github.com/codeready-toolchain/medik/pkg/ingress"
	"github.com/codeready-toolchain/medik/pkg/models"
	"github.com/codeready-toolchain/medik/pkg/playbook"
	"github.com/codeready-toolchain/medik/pkg/rules"
	"github.com/codeready-toolchain/medik/pkg/tools"
)

const webhookSecret = "test-webhook-secret"

type testHarness struct {
	router    http.Handler
	approvals *approval.Manager
	executor  *executor.Executor
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	invoker := tools.InvokerFunc(func(ctx context.Context, toolName string, params map[string]any) (string, error) {
		return "ok", nil
	})
	approvals := approval.NewManager(approval.NewRedisStoreFromClient(client), invoker, nil, 5*time.Minute)
	registry := playbook.NewRegistry()
	exec := executor.New(registry, invoker, approvals)
	engine := rules.NewWithDefaults()
	dispatcher := dispatch.New(engine, exec, nil, models.ReplyTarget{ChannelType: "slack", ChannelID: "C1"})
	processor := ingress.NewProcessor(webhookSecret, "X-Alertmanager-Signature", "X-Alertmanager-Timestamp", dispatcher)

	server := NewServer(processor, approvals, engine, registry, exec, nil)
	return &testHarness{router: server.Router(), approvals: approvals, executor: exec}
}

func (h *testHarness) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func signBody(body []byte) map[string]string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return map[string]string{
		"X-Alertmanager-Signature": hex.EncodeToString(mac.Sum(nil)),
		"X-Alertmanager-Timestamp": fmt.Sprintf("%d", time.Now().Unix()),
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"disabled"`)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHarness(t)
	rec := h.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWebhook(t *testing.T) {
	payload := []byte(`{"status":"firing","alerts":[{"status":"firing","labels":{"alertname":"HighErrorRate","severity":"warning","namespace":"payments"}}]}`)

	t.Run("accepted with valid signature", func(t *testing.T) {
		h := newTestHarness(t)
		rec := h.do(t, http.MethodPost, "/api/v1/webhooks/alertmanager", payload, signBody(payload))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"processed":1`)
	})

	t.Run("accepted with valid signature and no timestamp header", func(t *testing.T) {
		h := newTestHarness(t)
		headers := signBody(payload)
		delete(headers, "X-Alertmanager-Timestamp")
		rec := h.do(t, http.MethodPost, "/api/v1/webhooks/alertmanager", payload, headers)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"processed":1`)
	})

	t.Run("rejected with bad signature", func(t *testing.T) {
		h := newTestHarness(t)
		headers := signBody(payload)
		headers["X-Alertmanager-Signature"] = strings.Repeat("0", 64)
		rec := h.do(t, http.MethodPost, "/api/v1/webhooks/alertmanager", payload, headers)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejected with missing signature", func(t *testing.T) {
		h := newTestHarness(t)
		rec := h.do(t, http.MethodPost, "/api/v1/webhooks/alertmanager", payload, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejected with stale timestamp", func(t *testing.T) {
		h := newTestHarness(t)
		headers := signBody(payload)
		headers["X-Alertmanager-Timestamp"] = fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).Unix())
		rec := h.do(t, http.MethodPost, "/api/v1/webhooks/alertmanager", payload, headers)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejected with malformed body", func(t *testing.T) {
		h := newTestHarness(t)
		bad := []byte(`{not json`)
		rec := h.do(t, http.MethodPost, "/api/v1/webhooks/alertmanager", bad, signBody(bad))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRulesEndpoints(t *testing.T) {
	h := newTestHarness(t)

	t.Run("list builtins", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/v1/rules", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Rules []models.Rule `json:"rules"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Rules, 4)
	})

	t.Run("create", func(t *testing.T) {
		rule := models.Rule{
			ID:         "custom-1",
			Name:       "Scale under load",
			Condition:  models.EventTypePrometheusThreshold,
			PlaybookID: "scale_up_on_load",
			Enabled:    true,
		}
		rec := h.do(t, http.MethodPost, "/api/v1/rules", rule, nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("create with unknown playbook rejected", func(t *testing.T) {
		rule := models.Rule{ID: "bad", Condition: models.EventTypeCrashLoop, PlaybookID: "does_not_exist", Enabled: true}
		rec := h.do(t, http.MethodPost, "/api/v1/rules", rule, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown playbook_id")
	})

	t.Run("create with invalid condition rejected", func(t *testing.T) {
		rule := models.Rule{ID: "bad", Condition: "disk_full", PlaybookID: "scale_up_on_load", Enabled: true}
		rec := h.do(t, http.MethodPost, "/api/v1/rules", rule, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := h.do(t, http.MethodDelete, "/api/v1/rules/custom-1", nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = h.do(t, http.MethodDelete, "/api/v1/rules/custom-1", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPlaybooksEndpoint(t *testing.T) {
	h := newTestHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/playbooks", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Playbooks []playbook.Summary `json:"playbooks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Playbooks, 5)
}

func TestRunsEndpoint(t *testing.T) {
	h := newTestHarness(t)

	t.Run("unknown run", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/v1/runs/nope", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("existing run", func(t *testing.T) {
		run, err := h.executor.Execute(context.Background(), "crash_loop_remediation",
			map[string]string{"resource_name": "api-1", "namespace": "payments"},
			models.ReplyTarget{ChannelType: "slack", ChannelID: "C1"}, "tester")
		require.NoError(t, err)

		rec := h.do(t, http.MethodGet, "/api/v1/runs/"+run.RunID, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var fetched models.PlaybookRun
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
		assert.Equal(t, run.RunID, fetched.RunID)
		assert.Equal(t, models.RunStatusAwaitingApproval, fetched.Status)
	})
}

func TestApprovalsAndReplies(t *testing.T) {
	h := newTestHarness(t)
	target := models.ReplyTarget{ChannelType: "slack", ChannelID: "C1"}

	// Park a run at its medium-risk step to create a pending approval.
	_, err := h.executor.Execute(context.Background(), "crash_loop_remediation",
		map[string]string{"resource_name": "api-1", "namespace": "payments"}, target, "tester")
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/v1/approvals", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Approvals []models.PendingApproval `json:"approvals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Approvals, 1)
	short := listing.Approvals[0].ShortID()

	t.Run("unrelated message not handled", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/v1/replies", ReplyRequest{
			ChannelType: "slack", ChannelID: "C1", Text: "hello there", User: "alice",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"handled":false`)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/v1/replies", map[string]string{"text": "approve " + short}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("approve command executes", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/v1/replies", ReplyRequest{
			ChannelType: "slack", ChannelID: "C1", Text: "approve " + short, User: "alice",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"handled":true`)
		assert.Contains(t, rec.Body.String(), "executed successfully")
	})
}

func TestRuleFanOutCreatesIndependentApprovals(t *testing.T) {
	h := newTestHarness(t)

	// Two rules match the same alert; each run halts at its gated step.
	for _, rule := range []models.Rule{
		{ID: "alert-restart", Name: "Restart on firing alert", Condition: models.EventTypeAlertmanagerFiring,
			PlaybookID: "crash_loop_remediation", Enabled: true},
		{ID: "alert-rollback", Name: "Roll back on firing alert", Condition: models.EventTypeAlertmanagerFiring,
			PlaybookID: "deployment_rollback", Enabled: true},
	} {
		rec := h.do(t, http.MethodPost, "/api/v1/rules", rule, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	payload := []byte(`{"status":"firing","alerts":[{"status":"firing","labels":{"alertname":"PodCrashing","severity":"critical","namespace":"payments","pod":"api-1"}}]}`)
	rec := h.do(t, http.MethodPost, "/api/v1/webhooks/alertmanager", payload, signBody(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":1`)

	rec = h.do(t, http.MethodGet, "/api/v1/approvals", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Approvals []models.PendingApproval `json:"approvals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Approvals, 2, "one pending approval per matched rule")

	first, second := listing.Approvals[0], listing.Approvals[1]
	assert.NotEqual(t, first.ApprovalID, second.ApprovalID)
	assert.NotEqual(t, first.ShortID(), second.ShortID())
	assert.NotEqual(t, first.PlaybookRunID, second.PlaybookRunID, "each rule drives its own run")
	assert.ElementsMatch(t,
		[]string{"rule:alert-restart", "rule:alert-rollback"},
		[]string{first.RequestedBy, second.RequestedBy})

	// Each approval is actionable on its own short handle.
	for _, pending := range listing.Approvals {
		rec := h.do(t, http.MethodPost, "/api/v1/replies", ReplyRequest{
			ChannelType: "slack", ChannelID: "C1", Text: "approve " + pending.ShortID(), User: "alice",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"handled":true`)
		assert.Contains(t, rec.Body.String(), "executed successfully")
	}

	rec = h.do(t, http.MethodGet, "/api/v1/approvals", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Empty(t, listing.Approvals)
}
