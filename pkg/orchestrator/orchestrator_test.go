package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// stubMonitoring serves successive alert snapshots, one per call.
type stubMonitoring struct {
	alertBatches [][]models.Alert
	callCount    int
	logs         []models.LogEntry
	err          error
}

func (s *stubMonitoring) GetCurrentAlerts(ctx context.Context, filters map[string]any) ([]models.Alert, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.alertBatches) == 0 {
		return nil, nil
	}
	idx := s.callCount
	if idx >= len(s.alertBatches) {
		idx = len(s.alertBatches) - 1
	}
	s.callCount++
	return s.alertBatches[idx], nil
}

func (s *stubMonitoring) GetMetrics(ctx context.Context, query models.MetricQuery) (*models.MetricTimeSeries, error) {
	return &models.MetricTimeSeries{MetricName: query.MetricName}, nil
}

func (s *stubMonitoring) GetLogs(ctx context.Context, query models.LogQuery) ([]models.LogEntry, error) {
	return s.logs, nil
}

func (s *stubMonitoring) GetHostInfo(ctx context.Context, hostname string) (*models.HostInfo, error) {
	return &models.HostInfo{Hostname: hostname, State: "running"}, nil
}

func (s *stubMonitoring) GetTopProcesses(ctx context.Context, hostname string, limit int) ([]models.ProcessInfo, error) {
	return nil, nil
}

type stubTicketing struct {
	changes []models.ChangeRecord
	err     error
}

func (s *stubTicketing) GetIncident(ctx context.Context, id string) (*models.Ticket, error) {
	return &models.Ticket{ID: id}, nil
}

func (s *stubTicketing) CreateIncident(ctx context.Context, req models.CreateTicketRequest) (*models.Ticket, error) {
	return &models.Ticket{ID: "t1", ShortDescription: req.ShortDescription}, nil
}

func (s *stubTicketing) UpdateIncident(ctx context.Context, id string, updates map[string]any) (*models.Ticket, error) {
	return &models.Ticket{ID: id}, nil
}

func (s *stubTicketing) GetRecentChanges(ctx context.Context, timeframe string) ([]models.ChangeRecord, error) {
	return s.changes, s.err
}

func (s *stubTicketing) AddWorkNote(ctx context.Context, id, note string) error { return nil }

func (s *stubTicketing) SearchKnowledgeBase(ctx context.Context, query string) ([]models.KBArticle, error) {
	return nil, nil
}

type stubCompute struct {
	hostname  string
	processes []models.ProcessInfo
	restarted []string
}

func (s *stubCompute) GetHostInfo(ctx context.Context, hostname string) (*models.HostInfo, error) {
	return &models.HostInfo{Hostname: s.hostname, State: "running"}, nil
}

func (s *stubCompute) GetTopProcesses(ctx context.Context, hostname string, limit int) ([]models.ProcessInfo, error) {
	return s.processes, nil
}

func (s *stubCompute) RestartService(ctx context.Context, hostname, service string) (map[string]any, error) {
	s.restarted = append(s.restarted, hostname+"/"+service)
	return map[string]any{"status": "success", "hostname": hostname, "service": service}, nil
}

type stubAlerting struct {
	incidents []models.PagerIncident
}

func (s *stubAlerting) GetActiveIncidents(ctx context.Context) ([]models.PagerIncident, error) {
	return s.incidents, nil
}

func (s *stubAlerting) GetOnCall(ctx context.Context, schedule string) (*models.OnCallInfo, error) {
	return &models.OnCallInfo{User: "alice", Schedule: schedule}, nil
}

func (s *stubAlerting) TriggerAlert(ctx context.Context, req models.AlertRequest) error { return nil }
func (s *stubAlerting) AcknowledgeAlert(ctx context.Context, alertID string) error      { return nil }

// stubProviders satisfies ProviderSource with in-memory stubs.
type stubProviders struct {
	monitoring *stubMonitoring
	ticketing  *stubTicketing
	compute    *stubCompute
	alerting   *stubAlerting

	calls   []string
	callErr error
}

func (s *stubProviders) Provider(category string) (any, error) {
	switch category {
	case "monitoring":
		return s.monitoring, nil
	case "ticketing":
		return s.ticketing, nil
	case "compute":
		return s.compute, nil
	case "alerting":
		return s.alerting, nil
	default:
		return nil, errors.New("no provider for " + category)
	}
}

func (s *stubProviders) Call(ctx context.Context, category, method string, params map[string]any) (any, error) {
	s.calls = append(s.calls, category+"."+method)
	if s.callErr != nil {
		return nil, s.callErr
	}
	return map[string]any{"status": "success"}, nil
}

// stubEngine returns canned ML outputs.
type stubEngine struct {
	classification  *models.Classification
	diagnosis       *models.DiagnosticResult
	recommendations *models.RecommendationSet
	summary         string
	classifyErr     error

	diagnoseFindings []models.Finding
}

func (s *stubEngine) Classify(ctx context.Context, desc string) (*models.Classification, error) {
	if s.classifyErr != nil {
		return nil, s.classifyErr
	}
	return s.classification, nil
}

func (s *stubEngine) Diagnose(ctx context.Context, desc string, findings []models.Finding) (*models.DiagnosticResult, error) {
	s.diagnoseFindings = findings
	return s.diagnosis, nil
}

func (s *stubEngine) Recommend(ctx context.Context, desc string, d *models.DiagnosticResult, findings []models.Finding) (*models.RecommendationSet, error) {
	return s.recommendations, nil
}

func (s *stubEngine) Summarize(ctx context.Context, incident *models.Incident) (string, error) {
	return s.summary, nil
}

func defaultStubs() (*stubProviders, *stubEngine) {
	providers := &stubProviders{
		monitoring: &stubMonitoring{
			alertBatches: [][]models.Alert{{
				{ID: "a1", Name: "cpu.high", Host: "web-01", Value: 96, Status: "triggered", Severity: models.SeverityHigh},
			}},
			logs: []models.LogEntry{
				{Timestamp: time.Now().UTC(), Level: "ERROR", Message: "GC thrash"},
			},
		},
		ticketing: &stubTicketing{
			changes: []models.ChangeRecord{{ID: "c1", Number: "CHG0001", Description: "JVM flag change", Status: "closed"}},
		},
		compute: &stubCompute{
			hostname: "web-01",
			processes: []models.ProcessInfo{
				{PID: 4242, Name: "java", CPUPercent: 94.2, MemoryPercent: 61.0},
			},
		},
		alerting: &stubAlerting{
			incidents: []models.PagerIncident{{ID: "PD-1", Title: "High CPU", Status: "triggered", Urgency: "high"}},
		},
	}
	engine := &stubEngine{
		classification: &models.Classification{
			Category: models.CategoryCompute, Severity: models.SeverityHigh,
			Confidence: 0.92, Reasoning: "CPU saturation symptoms",
		},
		diagnosis: &models.DiagnosticResult{
			RootCause: "Runaway java process", Confidence: 0.88,
			ContributingFactors: []string{"GC pressure"},
			AffectedComponents:  []string{"web-01"},
		},
		recommendations: &models.RecommendationSet{
			Summary: "Restart java then notify",
			Recommendations: []models.ActionRecommendation{
				{
					Description: "Restart java on web-01", RiskLevel: models.RiskMedium,
					RequiresApproval: true, Integration: "compute", Method: "restart_service",
					Params: map[string]any{"hostname": "web-01", "service": "java"},
				},
				{
					Description: "Notify on-call channel", RiskLevel: models.RiskLow,
					RequiresApproval: false,
				},
			},
		},
		summary: "Resolved by restarting java.",
	}
	return providers, engine
}

func newTestOrchestrator(providers *stubProviders, engine *stubEngine) *Orchestrator {
	o := New(&config.Settings{RunbookMode: "mock"}, providers, engine)
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return o
}

func TestCreateIncidentClassifies(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)

	incident, err := o.CreateIncident(context.Background(), "CPU is pegged on web-01")

	require.NoError(t, err)
	assert.Regexp(t, `^INC-[0-9a-f-]{8}$`, incident.ID)
	assert.Equal(t, models.StatusTriaged, incident.Status)
	assert.Equal(t, models.CategoryCompute, incident.Category)
	assert.Equal(t, models.SeverityHigh, incident.Severity)
	require.NotNil(t, incident.Classification)

	require.Len(t, incident.Timeline, 2)
	assert.Equal(t, "created", incident.Timeline[0].EventType)
	assert.Equal(t, "classified", incident.Timeline[1].EventType)
	assert.Contains(t, incident.Timeline[1].Summary, "92%")
}

func TestCreateIncidentTruncatesLongTitle(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)

	long := ""
	for i := 0; i < 40; i++ {
		long += "overload "
	}
	incident, err := o.CreateIncident(context.Background(), long)

	require.NoError(t, err)
	assert.Len(t, []rune(incident.Title), models.MaxTitleLength)
	assert.Equal(t, long, incident.Description)
}

func TestGatherContextCollectsFromAllProviders(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1", Description: "cpu"}

	findings := o.GatherContext(context.Background(), incident)

	// 1 alert + 1 log pattern + 1 change + 1 compute + 1 pager incident.
	require.Len(t, findings, 5)
	assert.Equal(t, models.StatusDiagnosing, incident.Status)

	bySource := map[string]int{}
	for _, f := range findings {
		bySource[f.Source]++
	}
	assert.Equal(t, 2, bySource["monitoring"])
	assert.Equal(t, 1, bySource["ticketing"])
	assert.Equal(t, 1, bySource["compute"])
	assert.Equal(t, 1, bySource["alerting"])

	last := incident.Timeline[len(incident.Timeline)-1]
	assert.Equal(t, "context_gathered", last.EventType)
	assert.Contains(t, last.Summary, "5 findings")
}

func TestGatherContextSurvivesProviderFailure(t *testing.T) {
	providers, engine := defaultStubs()
	providers.ticketing.err = errors.New("servicenow down")
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1"}

	findings := o.GatherContext(context.Background(), incident)

	// Everything except the ticketing finding still arrives.
	assert.Len(t, findings, 4)
	for _, f := range findings {
		assert.NotEqual(t, "ticketing", f.Source)
	}
}

func TestRecommendCreatesActions(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1", Description: "cpu"}

	recSet, err := o.Recommend(context.Background(), incident, engine.diagnosis)

	require.NoError(t, err)
	assert.Len(t, recSet.Recommendations, 2)
	require.Len(t, incident.Actions, 2)
	assert.Equal(t, models.StatusAwaitingApproval, incident.Status)

	restart := incident.Actions[0]
	assert.Equal(t, models.ActionExecute, restart.ActionType)
	assert.Equal(t, "compute", restart.Integration)
	assert.True(t, restart.RequiresApproval)

	notify := incident.Actions[1]
	assert.Equal(t, models.ActionNotify, notify.ActionType)
	assert.Empty(t, notify.Integration)
}

func TestApprovalFlow(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1", Description: "cpu"}
	_, err := o.Recommend(context.Background(), incident, engine.diagnosis)
	require.NoError(t, err)

	auto := o.AutoApproveLowRisk(incident)
	require.Len(t, auto, 1)
	assert.Equal(t, "auto", auto[0].ApprovedBy)

	pending := o.PendingApprovals(incident)
	require.Len(t, pending, 1)
	restart := pending[0]

	approved := o.ApproveAction(incident, restart.ID, "alice")
	require.NotNil(t, approved)
	assert.True(t, approved.Approved())
	assert.Equal(t, "alice", approved.ApprovedBy)
	assert.Empty(t, o.PendingApprovals(incident))

	last := incident.Timeline[len(incident.Timeline)-1]
	assert.Equal(t, "approved", last.EventType)
}

func TestApproveUnknownActionReturnsNil(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1"}

	assert.Nil(t, o.ApproveAction(incident, "act-missing", "alice"))
	assert.Nil(t, o.RejectAction(incident, "act-missing", "alice"))
}

func TestRejectActionBlocksExecution(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1", Description: "cpu"}
	_, err := o.Recommend(context.Background(), incident, engine.diagnosis)
	require.NoError(t, err)
	restart := incident.Actions[0]

	rejected := o.RejectAction(incident, restart.ID, "bob")

	require.NotNil(t, rejected)
	assert.Equal(t, models.DecisionRejected, rejected.Decision)
	assert.Equal(t, "bob", rejected.RejectedBy)

	executed := o.ExecuteApprovedActions(context.Background(), incident)
	assert.Empty(t, executed)
	assert.Empty(t, providers.calls)
}

func TestExecuteApprovedActions(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1", Description: "cpu"}
	_, err := o.Recommend(context.Background(), incident, engine.diagnosis)
	require.NoError(t, err)

	o.AutoApproveLowRisk(incident)
	o.ApproveAction(incident, incident.Actions[0].ID, "alice")

	executed := o.ExecuteApprovedActions(context.Background(), incident)

	require.Len(t, executed, 2)
	assert.Equal(t, models.StatusExecuting, incident.Status)
	assert.Equal(t, []string{"compute.restart_service"}, providers.calls)

	restart := incident.Actions[0]
	require.NotNil(t, restart.ExecutedAt)
	assert.Equal(t, "success", restart.Result["status"])

	// The notify action has no integration and gets a skipped result.
	notify := incident.Actions[1]
	require.NotNil(t, notify.ExecutedAt)
	assert.Equal(t, "skipped", notify.Result["status"])

	// Re-running executes nothing.
	assert.Empty(t, o.ExecuteApprovedActions(context.Background(), incident))
}

func TestExecuteActionFailureIsIsolated(t *testing.T) {
	providers, engine := defaultStubs()
	providers.callErr = errors.New("instance unreachable")
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1", Description: "cpu"}
	_, err := o.Recommend(context.Background(), incident, engine.diagnosis)
	require.NoError(t, err)
	o.AutoApproveLowRisk(incident)
	o.ApproveAction(incident, incident.Actions[0].ID, "alice")

	executed := o.ExecuteApprovedActions(context.Background(), incident)

	require.Len(t, executed, 2)
	assert.Equal(t, "instance unreachable", incident.Actions[0].Error)
	// The notify action after the failure still executed.
	assert.Equal(t, "skipped", incident.Actions[1].Result["status"])
}

func TestVerifyResolvedWhenNoActiveAlerts(t *testing.T) {
	providers, engine := defaultStubs()
	providers.monitoring.alertBatches = [][]models.Alert{{
		{ID: "a1", Name: "cpu.high", Status: "resolved", Severity: models.SeverityHigh},
	}}
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1"}

	result := o.Verify(context.Background(), incident, 1)

	assert.True(t, result.Resolved)
	assert.Equal(t, 0, result.ActiveAlertCount)
	assert.Equal(t, 1, result.ClearedAlertCount)
	assert.Equal(t, models.StatusResolved, incident.Status)
	require.NotNil(t, incident.ResolvedAt)
}

func TestVerifyStillFiring(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1"}

	result := o.Verify(context.Background(), incident, 1)

	assert.False(t, result.Resolved)
	assert.Equal(t, 1, result.ActiveAlertCount)
	assert.Equal(t, models.StatusVerifying, incident.Status)
	assert.Nil(t, incident.ResolvedAt)

	last := incident.Timeline[len(incident.Timeline)-1]
	assert.Equal(t, "verification_failed", last.EventType)
}

func TestVerifyProviderErrorIsUnresolved(t *testing.T) {
	providers, engine := defaultStubs()
	providers.monitoring.err = errors.New("datadog timeout")
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1"}

	result := o.Verify(context.Background(), incident, 1)

	assert.False(t, result.Resolved)
	assert.Contains(t, result.Detail, "datadog timeout")
	last := incident.Timeline[len(incident.Timeline)-1]
	assert.Equal(t, "verification_error", last.EventType)
}

func TestVerifyWithRetryResolvesOnSecondAttempt(t *testing.T) {
	providers, engine := defaultStubs()
	providers.monitoring.alertBatches = [][]models.Alert{
		{{ID: "a1", Name: "cpu.high", Status: "triggered", Severity: models.SeverityHigh}},
		{{ID: "a1", Name: "cpu.high", Status: "resolved", Severity: models.SeverityHigh}},
	}
	o := newTestOrchestrator(providers, engine)
	slept := 0
	o.sleep = func(ctx context.Context, d time.Duration) error {
		slept++
		return nil
	}
	incident := &models.Incident{ID: "INC-1"}

	result, err := o.VerifyWithRetry(context.Background(), incident, 3, time.Second)

	require.NoError(t, err)
	assert.True(t, result.Resolved)
	assert.Equal(t, 2, result.Attempts)
	// One delay, between attempt 1 and 2; none before the first.
	assert.Equal(t, 1, slept)
	assert.Equal(t, models.StatusResolved, incident.Status)
}

func TestVerifyWithRetryExhaustsAttempts(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)
	incident := &models.Incident{ID: "INC-1"}

	result, err := o.VerifyWithRetry(context.Background(), incident, 3, 0)

	require.NoError(t, err)
	assert.False(t, result.Resolved)
	assert.Equal(t, 3, result.Attempts)
}

func TestRunDiagnosisEndState(t *testing.T) {
	providers, engine := defaultStubs()
	o := newTestOrchestrator(providers, engine)

	incident, err := o.RunDiagnosis(context.Background(), "High CPU on web-01")

	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingApproval, incident.Status)
	assert.Len(t, incident.Findings, 5)
	assert.Len(t, incident.Actions, 2)

	// The gathered findings were handed to the diagnosis call.
	assert.Len(t, engine.diagnoseFindings, 5)

	// Low-risk notify is already auto-approved, restart still pending.
	assert.True(t, incident.Actions[1].Approved())
	assert.Len(t, o.PendingApprovals(incident), 1)
}

func TestRunFullWorkflow(t *testing.T) {
	providers, engine := defaultStubs()
	// Gather sees firing alerts, verification sees them cleared.
	providers.monitoring.alertBatches = [][]models.Alert{
		{{ID: "a1", Name: "cpu.high", Status: "triggered", Severity: models.SeverityHigh}},
		{{ID: "a1", Name: "cpu.high", Status: "resolved", Severity: models.SeverityHigh}},
	}
	o := newTestOrchestrator(providers, engine)

	incident, verification, err := o.RunFullWorkflow(context.Background(), "High CPU on web-01", 3, 0)

	require.NoError(t, err)
	assert.True(t, verification.Resolved)
	assert.Equal(t, models.StatusResolved, incident.Status)
	assert.Equal(t, "Resolved by restarting java.", incident.Summary)

	// Only the auto-approved notify ran; the restart stayed pending.
	assert.Empty(t, providers.calls)
	assert.Len(t, o.PendingApprovals(incident), 1)
}

func TestCreateIncidentClassifyErrorPropagates(t *testing.T) {
	providers, engine := defaultStubs()
	engine.classifyErr = errors.New("model offline")
	o := newTestOrchestrator(providers, engine)

	_, err := o.CreateIncident(context.Background(), "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
}
