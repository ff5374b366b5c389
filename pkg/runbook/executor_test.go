package runbook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncallops/runbookd/pkg/models"
)

// fakeDispatcher returns scripted results keyed by "category.method" and
// records every call it receives.
type fakeDispatcher struct {
	results map[string]any
	errs    map[string]error
	calls   []string
	params  []map[string]any
}

func (f *fakeDispatcher) Call(ctx context.Context, category, method string, params map[string]any) (any, error) {
	key := category + "." + method
	f.calls = append(f.calls, key)
	f.params = append(f.params, params)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.results[key], nil
}

// fakeEngine is a diagnose-only ML engine for executor tests.
type fakeEngine struct {
	diagnosis *models.DiagnosticResult
	err       error
	findings  []models.Finding
}

func (f *fakeEngine) Classify(ctx context.Context, desc string) (*models.Classification, error) {
	return &models.Classification{Category: models.CategoryUnknown, Severity: models.SeverityMedium}, nil
}

func (f *fakeEngine) Diagnose(ctx context.Context, desc string, findings []models.Finding) (*models.DiagnosticResult, error) {
	f.findings = findings
	if f.err != nil {
		return nil, f.err
	}
	return f.diagnosis, nil
}

func (f *fakeEngine) Recommend(ctx context.Context, desc string, d *models.DiagnosticResult, findings []models.Finding) (*models.RecommendationSet, error) {
	return &models.RecommendationSet{}, nil
}

func (f *fakeEngine) Summarize(ctx context.Context, incident *models.Incident) (string, error) {
	return "summary", nil
}

func gateRunbook() *Runbook {
	return &Runbook{
		Name: "gated",
		Steps: []Step{
			{
				ID: "gather_alerts", Action: ActionGather, Description: "alerts",
				Integration: "monitoring", Method: "get_current_alerts",
			},
			{
				ID: "restart", Action: ActionExecute, Description: "restart java",
				Integration: "compute", Method: "restart_service",
				Params:           map[string]any{"hostname": "web-01", "service": "java"},
				RequiresApproval: true, RiskLevel: models.RiskMedium,
			},
			{
				ID: "notify", Action: ActionExecute, Description: "tell the team",
				Integration: "communication", Method: "send_message",
				Params: map[string]any{"channel": "alerts", "message": "done"},
			},
		},
	}
}

func TestExecutePausesAtApprovalGate(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			"monitoring.get_current_alerts": map[string]any{"count": 1},
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	incident := &models.Incident{ID: "INC-1"}

	execution, err := executor.Execute(context.Background(), gateRunbook(), incident, nil)

	require.NoError(t, err)
	assert.Equal(t, ExecutionAwaitingApproval, execution.Status)
	assert.Equal(t, []string{"restart"}, execution.PendingApprovalSteps)

	// Only the gather step ran.
	assert.Equal(t, []string{"monitoring.get_current_alerts"}, dispatcher.calls)
	assert.Equal(t, StepSuccess, execution.StepResults["gather_alerts"].Status)
	assert.Equal(t, StepPendingApproval, execution.StepResults["restart"].Status)
	assert.Equal(t, StepPending, execution.StepResults["notify"].Status)
	assert.Equal(t, "Blocked by unapproved step", execution.StepResults["notify"].SkippedReason)

	// Gather results survive for resume-time templating.
	assert.Equal(t, map[string]any{"count": 1}, execution.Results["gather_alerts"])
}

func TestResumeAfterApprovalCompletes(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			"monitoring.get_current_alerts": map[string]any{"count": 1},
			"compute.restart_service":       map[string]any{"status": "success"},
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	incident := &models.Incident{ID: "INC-1"}
	rb := gateRunbook()
	ctx := context.Background()

	execution, err := executor.Execute(ctx, rb, incident, nil)
	require.NoError(t, err)
	require.Equal(t, ExecutionAwaitingApproval, execution.Status)

	execution, err = executor.Resume(ctx, rb, incident, execution, map[string]bool{"restart": true})

	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, execution.Status)
	assert.Empty(t, execution.PendingApprovalSteps)
	assert.NotNil(t, execution.CompletedAt)
	assert.Equal(t, StepSuccess, execution.StepResults["restart"].Status)
	assert.Equal(t, StepSuccess, execution.StepResults["notify"].Status)

	// The gather step did not run a second time.
	assert.Equal(t, []string{
		"monitoring.get_current_alerts",
		"compute.restart_service",
		"communication.send_message",
	}, dispatcher.calls)
}

func TestResumeIgnoresNonAwaitingExecution(t *testing.T) {
	executor := NewExecutor(&fakeDispatcher{}, &fakeEngine{})
	execution := &Execution{Status: ExecutionCompleted}

	got, err := executor.Resume(context.Background(), gateRunbook(), &models.Incident{}, execution, nil)

	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, got.Status)
}

func TestPreApprovedStepsDoNotPause(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			"compute.restart_service": map[string]any{"status": "success"},
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	rb := &Runbook{
		Name: "pre",
		Steps: []Step{
			{
				ID: "restart", Action: ActionExecute, Description: "restart",
				Integration: "compute", Method: "restart_service",
				RequiresApproval: true,
			},
		},
	}

	execution, err := executor.Execute(context.Background(), rb, &models.Incident{ID: "INC-1"},
		map[string]bool{"restart": true})

	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, execution.Status)
}

func TestGatherFailureIsNonFatal(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			"communication.send_message": nil,
		},
		errs: map[string]error{
			"monitoring.get_current_alerts": errors.New("datadog unreachable"),
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	incident := &models.Incident{ID: "INC-1"}
	rb := &Runbook{
		Name: "tolerant",
		Steps: []Step{
			{
				ID: "gather_alerts", Action: ActionGather, Description: "alerts",
				Integration: "monitoring", Method: "get_current_alerts",
			},
			{
				ID: "notify", Action: ActionExecute, Description: "notify",
				Integration: "communication", Method: "send_message",
			},
		},
	}

	execution, err := executor.Execute(context.Background(), rb, incident, nil)

	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, execution.Status)
	assert.Equal(t, StepFailed, execution.StepResults["gather_alerts"].Status)
	assert.Contains(t, execution.StepResults["gather_alerts"].Error, "datadog unreachable")
	// The failed gather leaves an empty result for templating.
	assert.Equal(t, map[string]any{}, execution.Results["gather_alerts"])
	assert.Equal(t, StepSuccess, execution.StepResults["notify"].Status)
}

func TestExecuteFailureIsFatal(t *testing.T) {
	dispatcher := &fakeDispatcher{
		errs: map[string]error{
			"compute.restart_service": errors.New("permission denied"),
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	rb := &Runbook{
		Name: "fatal",
		Steps: []Step{
			{
				ID: "restart", Action: ActionExecute, Description: "restart",
				Integration: "compute", Method: "restart_service",
			},
			{
				ID: "never_runs", Action: ActionExecute, Description: "after",
				Integration: "communication", Method: "send_message",
			},
		},
	}

	execution, err := executor.Execute(context.Background(), rb, &models.Incident{ID: "INC-1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, ExecutionFailed, execution.Status)
	assert.NotNil(t, execution.CompletedAt)
	assert.NotContains(t, execution.StepResults, "never_runs")
	assert.Equal(t, []string{"compute.restart_service"}, dispatcher.calls)
}

func TestTemplatesResolveAcrossSteps(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			"compute.get_host_info":   map[string]any{"hostname": "prod-web-03"},
			"compute.restart_service": map[string]any{"status": "success"},
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	rb := &Runbook{
		Name: "chained",
		Steps: []Step{
			{
				ID: "host", Action: ActionGather, Description: "host info",
				Integration: "compute", Method: "get_host_info",
			},
			{
				ID: "restart", Action: ActionExecute, Description: "restart",
				Integration: "compute", Method: "restart_service",
				Params: map[string]any{"hostname": "{{ host.hostname }}", "service": "java"},
			},
		},
	}

	execution, err := executor.Execute(context.Background(), rb, &models.Incident{ID: "INC-1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, execution.Status)
	require.Len(t, dispatcher.params, 2)
	assert.Equal(t, "prod-web-03", dispatcher.params[1]["hostname"])
}

func TestMLDecisionStepSynthesizesFindings(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			"monitoring.get_current_alerts": map[string]any{"count": 2},
		},
	}
	engine := &fakeEngine{
		diagnosis: &models.DiagnosticResult{RootCause: "cdn misroute", Confidence: 0.95},
	}
	executor := NewExecutor(dispatcher, engine)
	incident := &models.Incident{ID: "INC-1", Description: "EU latency spike"}
	rb := &Runbook{
		Name: "diagnostic",
		Steps: []Step{
			{
				ID: "alerts", Action: ActionGather, Description: "alerts",
				Integration: "monitoring", Method: "get_current_alerts",
			},
			{
				ID: "decide", Action: ActionMLDecision, Description: "diagnose",
				Context: []string{"alerts"},
			},
		},
	}

	execution, err := executor.Execute(context.Background(), rb, incident, nil)

	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, execution.Status)
	assert.Equal(t, "cdn misroute", execution.StepResults["decide"].Result["root_cause"])

	require.Len(t, engine.findings, 1)
	finding := engine.findings[0]
	assert.Equal(t, "rb-alerts", finding.ID)
	assert.Equal(t, models.FindingCorrelation, finding.FindingType)
	assert.Equal(t, "runbook_step:alerts", finding.Source)
	assert.InDelta(t, 0.8, finding.Confidence, 0.001)
}

func TestMLDecisionFailureIsFatal(t *testing.T) {
	executor := NewExecutor(&fakeDispatcher{}, &fakeEngine{err: errors.New("model unavailable")})
	rb := &Runbook{
		Name: "broken-brain",
		Steps: []Step{
			{ID: "decide", Action: ActionMLDecision, Description: "diagnose"},
		},
	}

	execution, err := executor.Execute(context.Background(), rb, &models.Incident{ID: "INC-1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, ExecutionFailed, execution.Status)
	assert.Contains(t, execution.StepResults["decide"].Error, "model unavailable")
}

func TestTimelineEntriesForExecutedSteps(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			"monitoring.get_current_alerts": map[string]any{"count": 0},
		},
		errs: map[string]error{
			"compute.restart_service": errors.New("boom"),
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	incident := &models.Incident{ID: "INC-1"}
	rb := &Runbook{
		Name: "audited",
		Steps: []Step{
			{
				ID: "alerts", Action: ActionGather, Description: "alerts",
				Integration: "monitoring", Method: "get_current_alerts",
			},
			{
				ID: "restart", Action: ActionExecute, Description: "restart",
				Integration: "compute", Method: "restart_service",
			},
		},
	}

	_, err := executor.Execute(context.Background(), rb, incident, nil)

	require.NoError(t, err)
	require.Len(t, incident.Timeline, 2)
	assert.Equal(t, "runbook_step_success", incident.Timeline[0].EventType)
	assert.Equal(t, "runbook_engine", incident.Timeline[0].Source)
	assert.Equal(t, "alerts", incident.Timeline[0].Details["step_id"])
	assert.Equal(t, "runbook_step_failed", incident.Timeline[1].EventType)
	assert.Equal(t, "boom", incident.Timeline[1].Details["error"])
}

func TestCoercedResultShapes(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]any{
			// Typed slice result coerces to items/count.
			"monitoring.get_current_alerts": []models.Alert{
				{ID: "a1", Name: "cpu", Status: "triggered", Severity: models.SeverityHigh},
			},
			// Nil result coerces to an empty map.
			"communication.send_message": nil,
		},
	}
	executor := NewExecutor(dispatcher, &fakeEngine{})
	rb := &Runbook{
		Name: "shapes",
		Steps: []Step{
			{
				ID: "alerts", Action: ActionGather, Description: "alerts",
				Integration: "monitoring", Method: "get_current_alerts",
			},
			{
				ID: "notify", Action: ActionExecute, Description: "notify",
				Integration: "communication", Method: "send_message",
			},
		},
	}

	execution, err := executor.Execute(context.Background(), rb, &models.Incident{ID: "INC-1"}, nil)

	require.NoError(t, err)
	alerts := execution.StepResults["alerts"].Result
	assert.Equal(t, 1, alerts["count"])
	items := alerts["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "a1", first["id"])

	assert.Equal(t, map[string]any{}, execution.StepResults["notify"].Result)
}
