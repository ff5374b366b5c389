package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/integrations"
	"github.com/oncallops/runbookd/pkg/integrations/mock"
	"github.com/oncallops/runbookd/pkg/ml"
	"github.com/oncallops/runbookd/pkg/models"
	"github.com/oncallops/runbookd/pkg/orchestrator"
	"github.com/oncallops/runbookd/pkg/queue"
	"github.com/oncallops/runbookd/pkg/runbook"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const cpuRunbookYAML = `name: high-cpu-triage
description: Gather CPU evidence, then restart the hot service.
trigger: High CPU alert
steps:
  - id: check_alerts
    action: gather
    description: Pull active alerts
    integration: monitoring
    method: get_current_alerts
  - id: restart
    action: execute
    description: Restart the java service
    integration: compute
    method: restart_service
    params:
      hostname: prod-web-03
      service: java
    requires_approval: true
    risk_level: medium
`

// newTestServer assembles the full mock stack behind the API.
func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "high_cpu.yaml"), []byte(cpuRunbookYAML), 0o644))

	settings := &config.Settings{
		RunbookMode:  "mock",
		MockScenario: "high_cpu",
		RunbookDir:   dir,
	}
	registry := integrations.NewRegistry(settings, mock.ProviderFactories())
	engine := ml.NewMockEngine(settings)
	orch := orchestrator.New(settings, registry, engine)
	executor := runbook.NewExecutor(registry, engine)

	cfg := queue.DefaultConfig()
	cfg.WorkerCount = 1
	cfg.VerifyInterval = 0
	pool := queue.NewWorkerPool(cfg, orch)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	server, err := NewServer(settings, orch, executor, pool)
	require.NoError(t, err)
	return server, server.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mock", body["mode"])
	assert.Equal(t, float64(1), body["runbooks"])
}

func TestCreateIncident(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/incidents",
		gin.H{"description": "CPU pegged at 94% on prod-web-03"})

	require.Equal(t, http.StatusCreated, rec.Code)
	incident := decode[models.Incident](t, rec)
	assert.Regexp(t, `^INC-`, incident.ID)
	assert.Equal(t, models.StatusTriaged, incident.Status)
	assert.Equal(t, models.CategoryCompute, incident.Category)
	assert.Equal(t, models.SeverityHigh, incident.Severity)

	// Stored and retrievable.
	got := doJSON(t, router, http.MethodGet, "/api/incidents/"+incident.ID, nil)
	assert.Equal(t, http.StatusOK, got.Code)
}

func TestCreateIncidentRequiresDescription(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/incidents", gin.H{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetIncidentNotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/incidents/INC-missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiagnoseAndApprovalLifecycle(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/incidents/diagnose",
		gin.H{"description": "CPU pegged at 94% on prod-web-03"})
	require.Equal(t, http.StatusOK, rec.Code)
	incident := decode[models.Incident](t, rec)
	assert.Equal(t, models.StatusAwaitingApproval, incident.Status)
	assert.NotEmpty(t, incident.Findings)
	require.Len(t, incident.Actions, 3)

	// The low-risk Slack notification is already auto-approved.
	pendingRec := doJSON(t, router, http.MethodGet, "/api/incidents/"+incident.ID+"/approvals", nil)
	require.Equal(t, http.StatusOK, pendingRec.Code)
	pending := decode[struct {
		Pending []models.Action `json:"pending"`
	}](t, pendingRec)
	require.Len(t, pending.Pending, 2)

	// Approve the restart, reject the rollback.
	restartID := pending.Pending[0].ID
	rollbackID := pending.Pending[1].ID

	approveRec := doJSON(t, router, http.MethodPost,
		"/api/incidents/"+incident.ID+"/actions/"+restartID+"/approve",
		gin.H{"approved_by": "alice"})
	require.Equal(t, http.StatusOK, approveRec.Code)
	approved := decode[models.Action](t, approveRec)
	assert.Equal(t, models.DecisionApproved, approved.Decision)
	assert.Equal(t, "alice", approved.ApprovedBy)

	rejectRec := doJSON(t, router, http.MethodPost,
		"/api/incidents/"+incident.ID+"/actions/"+rollbackID+"/reject", nil)
	require.Equal(t, http.StatusOK, rejectRec.Code)
	rejected := decode[models.Action](t, rejectRec)
	assert.Equal(t, models.DecisionRejected, rejected.Decision)
	assert.Equal(t, "operator", rejected.RejectedBy)

	// Execute approved actions: restart plus the auto-approved notification.
	execRec := doJSON(t, router, http.MethodPost, "/api/incidents/"+incident.ID+"/execute", nil)
	require.Equal(t, http.StatusOK, execRec.Code)
	executed := decode[struct {
		Executed []models.Action `json:"executed"`
	}](t, execRec)
	assert.Len(t, executed.Executed, 2)

	// Both fixture alerts are still firing, so verification fails.
	verifyRec := doJSON(t, router, http.MethodPost, "/api/incidents/"+incident.ID+"/verify", nil)
	require.Equal(t, http.StatusOK, verifyRec.Code)
	verification := decode[models.VerificationResult](t, verifyRec)
	assert.False(t, verification.Resolved)
	assert.Equal(t, 2, verification.ActiveAlertCount)

	sumRec := doJSON(t, router, http.MethodPost, "/api/incidents/"+incident.ID+"/summarize", nil)
	require.Equal(t, http.StatusOK, sumRec.Code)
	summary := decode[map[string]string](t, sumRec)
	assert.NotEmpty(t, summary["summary"])
}

func TestApproveUnknownAction(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/incidents",
		gin.H{"description": "anything"})
	incident := decode[models.Incident](t, rec)

	resp := doJSON(t, router, http.MethodPost,
		"/api/incidents/"+incident.ID+"/actions/act-missing/approve", nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWorkflowQueueEndpoints(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/workflows",
		gin.H{"description": "CPU pegged at 94% on prod-web-03"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decode[queue.Job](t, rec)
	assert.Regexp(t, `^job-`, job.ID)

	// Poll until the workflow finishes.
	deadline := time.After(5 * time.Second)
	for {
		statusRec := doJSON(t, router, http.MethodGet, "/api/workflows/"+job.ID, nil)
		require.Equal(t, http.StatusOK, statusRec.Code)
		current := decode[queue.Job](t, statusRec)
		if current.Status == queue.JobCompleted {
			require.NotNil(t, current.Incident)
			assert.False(t, current.Verification.Resolved)
			break
		}
		select {
		case <-deadline:
			t.Fatalf("workflow never completed, status %s", current.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	listRec := doJSON(t, router, http.MethodGet, "/api/workflows", nil)
	assert.Equal(t, http.StatusOK, listRec.Code)

	cancelRec := doJSON(t, router, http.MethodPost, "/api/workflows/job-missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, cancelRec.Code)
}

func TestRunbookEndpoints(t *testing.T) {
	_, router := newTestServer(t)

	listRec := doJSON(t, router, http.MethodGet, "/api/runbooks", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	list := decode[struct {
		Runbooks []runbookSummary `json:"runbooks"`
	}](t, listRec)
	require.Len(t, list.Runbooks, 1)
	assert.Equal(t, "high-cpu-triage", list.Runbooks[0].Name)
	assert.Equal(t, []string{"check_alerts", "restart"}, list.Runbooks[0].Steps)

	// Need an incident to run against.
	incRec := doJSON(t, router, http.MethodPost, "/api/incidents",
		gin.H{"description": "CPU pegged on prod-web-03"})
	incident := decode[models.Incident](t, incRec)

	execRec := doJSON(t, router, http.MethodPost, "/api/runbooks/high-cpu-triage/execute",
		gin.H{"incident_id": incident.ID})
	require.Equal(t, http.StatusOK, execRec.Code)
	execution := decode[runbook.Execution](t, execRec)
	assert.Equal(t, runbook.ExecutionAwaitingApproval, execution.Status)
	assert.Equal(t, []string{"restart"}, execution.PendingApprovalSteps)

	// Resume with the gated step approved.
	resumeRec := doJSON(t, router, http.MethodPost, "/api/executions/"+execution.ID+"/resume",
		gin.H{"approved_steps": []string{"restart"}})
	require.Equal(t, http.StatusOK, resumeRec.Code)
	resumed := decode[runbook.Execution](t, resumeRec)
	assert.Equal(t, runbook.ExecutionCompleted, resumed.Status)

	getRec := doJSON(t, router, http.MethodGet, "/api/executions/"+execution.ID, nil)
	assert.Equal(t, http.StatusOK, getRec.Code)

	missingRec := doJSON(t, router, http.MethodPost, "/api/runbooks/nope/execute",
		gin.H{"incident_id": incident.ID})
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestExecuteRunbookUnknownIncident(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/runbooks/high-cpu-triage/execute",
		gin.H{"incident_id": "INC-missing"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
