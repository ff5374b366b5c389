package runbook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oncallops/runbookd/pkg/ml"
	"github.com/oncallops/runbookd/pkg/models"
)

// Dispatcher routes one integration call through the configured provider.
// Satisfied by the integration registry.
type Dispatcher interface {
	Call(ctx context.Context, category, method string, params map[string]any) (any, error)
}

// Executor runs runbook steps and full runbook workflows.
//
// Execution semantics:
//   - gather step failures are non-fatal: a warning is logged and the
//     workflow continues with an empty result for that step.
//   - execute and ml_decision failures halt the workflow as failed.
//   - Steps with requires_approval pause execution; Resume continues with
//     the operator-approved step IDs.
//   - A timeline entry is appended to the incident for every step actually
//     executed, success or failure.
type Executor struct {
	dispatcher Dispatcher
	engine     ml.Engine
	logger     *slog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(dispatcher Dispatcher, engine ml.Engine) *Executor {
	return &Executor{
		dispatcher: dispatcher,
		engine:     engine,
		logger:     slog.With("component", "runbook_executor"),
	}
}

// ExecuteStep runs one step and returns its result. The approval gate is
// not checked here; Execute and Resume enforce it.
func (e *Executor) ExecuteStep(ctx context.Context, step *Step, incident *models.Incident, stepResults map[string]any) *StepResult {
	if step.Action == ActionMLDecision {
		return e.runMLDecision(ctx, step, incident, stepResults)
	}
	return e.runIntegrationStep(ctx, step, incident, stepResults)
}

// Execute runs all steps of a runbook sequentially. It stops at the first
// step that requires approval and is not pre-approved, returning the
// execution in awaiting_approval state with PendingApprovalSteps populated.
func (e *Executor) Execute(ctx context.Context, rb *Runbook, incident *models.Incident, preApproved map[string]bool) (*Execution, error) {
	execution := &Execution{
		ID:          "exec-" + shortID(),
		RunbookName: rb.Name,
		IncidentID:  incident.ID,
		Status:      ExecutionRunning,
		StepResults: make(map[string]*StepResult),
		Results:     make(map[string]any),
		StartedAt:   time.Now().UTC(),
	}
	if preApproved == nil {
		preApproved = map[string]bool{}
	}
	return e.runSteps(ctx, rb, incident, execution, map[string]any{}, preApproved, 0)
}

// Resume continues an awaiting_approval execution after operator sign-off.
// approved holds the step IDs the operator approved in this call. The
// execution is returned unchanged if it is not awaiting approval.
func (e *Executor) Resume(ctx context.Context, rb *Runbook, incident *models.Incident, execution *Execution, approved map[string]bool) (*Execution, error) {
	if execution.Status != ExecutionAwaitingApproval {
		return execution, nil
	}

	execution.Status = ExecutionRunning
	execution.PendingApprovalSteps = nil

	// Find the first step not yet successfully completed.
	startIndex := len(rb.Steps)
	for i := range rb.Steps {
		result, ok := execution.StepResults[rb.Steps[i].ID]
		if !ok || result.Status != StepSuccess {
			startIndex = i
			break
		}
	}

	accumulated := make(map[string]any, len(execution.Results))
	for k, v := range execution.Results {
		accumulated[k] = v
	}
	if approved == nil {
		approved = map[string]bool{}
	}
	return e.runSteps(ctx, rb, incident, execution, accumulated, approved, startIndex)
}

// runSteps is the core loop shared by Execute and Resume.
func (e *Executor) runSteps(ctx context.Context, rb *Runbook, incident *models.Incident, execution *Execution, accumulated map[string]any, approved map[string]bool, startIndex int) (*Execution, error) {
	for i := startIndex; i < len(rb.Steps); i++ {
		step := &rb.Steps[i]

		if step.RequiresApproval && !approved[step.ID] {
			execution.StepResults[step.ID] = &StepResult{
				StepID:        step.ID,
				Status:        StepPendingApproval,
				SkippedReason: "Awaiting operator approval",
			}
			execution.PendingApprovalSteps = append(execution.PendingApprovalSteps, step.ID)

			// Mark subsequent steps pending so callers see the full picture.
			for j := i + 1; j < len(rb.Steps); j++ {
				subsequent := &rb.Steps[j]
				if _, ok := execution.StepResults[subsequent.ID]; !ok {
					execution.StepResults[subsequent.ID] = &StepResult{
						StepID:        subsequent.ID,
						Status:        StepPending,
						SkippedReason: "Blocked by unapproved step",
					}
				}
				if subsequent.RequiresApproval {
					execution.PendingApprovalSteps = append(execution.PendingApprovalSteps, subsequent.ID)
				}
			}

			execution.Status = ExecutionAwaitingApproval
			execution.Results = accumulated
			return execution, nil
		}

		result := e.ExecuteStep(ctx, step, incident, accumulated)
		execution.StepResults[step.ID] = result
		appendTimeline(incident, step, result)

		switch result.Status {
		case StepSuccess:
			accumulated[step.ID] = result.Result
		case StepFailed:
			if step.Action == ActionGather {
				e.logger.Warn("gather step failed, continuing",
					"runbook", rb.Name, "step", step.ID, "error", result.Error)
				accumulated[step.ID] = map[string]any{}
			} else {
				now := time.Now().UTC()
				execution.Status = ExecutionFailed
				execution.CompletedAt = &now
				execution.Results = accumulated
				return execution, nil
			}
		}
	}

	now := time.Now().UTC()
	execution.Status = ExecutionCompleted
	execution.CompletedAt = &now
	execution.Results = accumulated
	return execution, nil
}

// runIntegrationStep resolves templates, dispatches the provider method and
// coerces the result to a map.
func (e *Executor) runIntegrationStep(ctx context.Context, step *Step, incident *models.Incident, stepResults map[string]any) *StepResult {
	resolved := ResolveParams(step.Params, incident, stepResults)
	now := time.Now().UTC()

	raw, err := e.dispatcher.Call(ctx, step.Integration, step.Method, resolved)
	if err != nil {
		return &StepResult{
			StepID:     step.ID,
			Status:     StepFailed,
			Error:      err.Error(),
			ExecutedAt: &now,
		}
	}
	return &StepResult{
		StepID:     step.ID,
		Status:     StepSuccess,
		Result:     models.CoerceResult(raw),
		ExecutedAt: &now,
	}
}

// runMLDecision feeds referenced step results to the ML engine as synthetic
// findings and records the diagnosis as the step result.
func (e *Executor) runMLDecision(ctx context.Context, step *Step, incident *models.Incident, stepResults map[string]any) *StepResult {
	now := time.Now().UTC()

	var findings []models.Finding
	for _, ref := range step.Context {
		refData, ok := stepResults[ref]
		if !ok {
			continue
		}
		details, isMap := refData.(map[string]any)
		if !isMap {
			details = map[string]any{"value": fmt.Sprintf("%v", refData)}
		}
		if len(details) == 0 {
			continue
		}
		findings = append(findings, models.Finding{
			ID:          "rb-" + ref,
			FindingType: models.FindingCorrelation,
			Source:      "runbook_step:" + ref,
			Summary:     fmt.Sprintf("Data gathered by runbook step %q", ref),
			Details:     details,
			Confidence:  0.8,
			Timestamp:   now,
		})
	}

	diagnosis, err := e.engine.Diagnose(ctx, incident.Description, findings)
	if err != nil {
		return &StepResult{
			StepID:     step.ID,
			Status:     StepFailed,
			Error:      err.Error(),
			ExecutedAt: &now,
		}
	}
	return &StepResult{
		StepID:     step.ID,
		Status:     StepSuccess,
		Result:     diagnosis.Dump(),
		ExecutedAt: &now,
	}
}

// appendTimeline records an executed step on the incident.
func appendTimeline(incident *models.Incident, step *Step, result *StepResult) {
	ok := result.Status == StepSuccess
	eventType := "runbook_step_failed"
	mark := "✗"
	if ok {
		eventType = "runbook_step_success"
		mark = "✓"
	}
	details := map[string]any{
		"step_id":     step.ID,
		"integration": step.Integration,
		"method":      step.Method,
	}
	if result.Error != "" {
		details["error"] = result.Error
	}
	timestamp := time.Now().UTC()
	if result.ExecutedAt != nil {
		timestamp = *result.ExecutedAt
	}
	incident.AddTimeline(models.TimelineEntry{
		Timestamp: timestamp,
		EventType: eventType,
		Summary:   fmt.Sprintf("%s [%s] %s", mark, step.Action, step.Description),
		Source:    "runbook_engine",
		Details:   details,
	})
}

func shortID() string {
	return uuid.NewString()[:8]
}
