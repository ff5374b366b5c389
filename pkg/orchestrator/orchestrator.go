// Package orchestrator coordinates the incident diagnostic workflow across
// the ML engine, the integration layer and the approval policy.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oncallops/runbookd/pkg/approval"
	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/integrations"
	"github.com/oncallops/runbookd/pkg/ml"
	"github.com/oncallops/runbookd/pkg/models"
)

// ProviderSource is the slice of the integration registry the orchestrator
// needs: typed provider lookup for evidence gathering, table dispatch for
// action execution.
type ProviderSource interface {
	Provider(category string) (any, error)
	Call(ctx context.Context, category, method string, params map[string]any) (any, error)
}

// Orchestrator drives an incident through classify, gather, diagnose,
// recommend, the approval gate, execute, verify and summarize.
type Orchestrator struct {
	settings  *config.Settings
	providers ProviderSource
	engine    ml.Engine
	evaluator *approval.Evaluator
	logger    *slog.Logger

	// sleep is swapped out in tests to avoid real verification delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator with the default approval policy.
func New(settings *config.Settings, providers ProviderSource, engine ml.Engine) *Orchestrator {
	return NewWithPolicy(settings, providers, engine, approval.DefaultPolicy())
}

// NewWithPolicy creates an orchestrator with a custom approval policy.
func NewWithPolicy(settings *config.Settings, providers ProviderSource, engine ml.Engine, policy approval.Policy) *Orchestrator {
	return &Orchestrator{
		settings:  settings,
		providers: providers,
		engine:    engine,
		evaluator: approval.NewEvaluator(policy),
		logger:    slog.With("component", "orchestrator"),
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func uid() string {
	return uuid.NewString()[:8]
}

func now() time.Time {
	return time.Now().UTC()
}

func (o *Orchestrator) addTimeline(incident *models.Incident, eventType, summary, source string, details map[string]any) {
	incident.AddTimeline(models.TimelineEntry{
		Timestamp: now(),
		EventType: eventType,
		Summary:   summary,
		Source:    source,
		Details:   details,
	})
}

// CreateIncident opens a new incident from a free-text problem report and
// classifies it. The incident comes back in triaged status with severity and
// category set from the classification.
func (o *Orchestrator) CreateIncident(ctx context.Context, description string) (*models.Incident, error) {
	incident := &models.Incident{
		ID:          "INC-" + uid(),
		Title:       models.TruncateTitle(description),
		Description: description,
		Status:      models.StatusNew,
		CreatedAt:   now(),
	}
	o.addTimeline(incident, "created", "Incident created from user report", "", nil)

	incident.Status = models.StatusTriaged
	classification, err := o.engine.Classify(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("classifying incident %s: %w", incident.ID, err)
	}
	incident.Classification = classification
	incident.Severity = classification.Severity
	incident.Category = classification.Category
	o.addTimeline(incident, "classified",
		fmt.Sprintf("Classified as %s / %s (confidence: %.0f%%)",
			classification.Category, classification.Severity, classification.Confidence*100),
		"ml_engine",
		map[string]any{"reasoning": classification.Reasoning})

	return incident, nil
}

// GatherContext queries the integration providers for operational evidence
// and attaches the findings to the incident. A provider failure is logged
// and skipped; gathering never fails as a whole.
func (o *Orchestrator) GatherContext(ctx context.Context, incident *models.Incident) []models.Finding {
	incident.Status = models.StatusDiagnosing
	o.addTimeline(incident, "gathering", "Gathering context from integrations", "", nil)

	var findings []models.Finding
	findings = append(findings, o.gatherAlerts(ctx)...)
	findings = append(findings, o.gatherLogs(ctx)...)
	findings = append(findings, o.gatherChanges(ctx)...)
	findings = append(findings, o.gatherCompute(ctx)...)
	findings = append(findings, o.gatherPagerIncidents(ctx)...)

	incident.Findings = findings
	o.addTimeline(incident, "context_gathered",
		fmt.Sprintf("Gathered %d findings from integrations", len(findings)), "", nil)
	return findings
}

func (o *Orchestrator) monitoring() (integrations.MonitoringProvider, error) {
	provider, err := o.providers.Provider(integrations.CategoryMonitoring)
	if err != nil {
		return nil, err
	}
	monitoring, ok := provider.(integrations.MonitoringProvider)
	if !ok {
		return nil, integrations.NewIntegrationError(integrations.CategoryMonitoring,
			"provider does not implement the monitoring contract", nil)
	}
	return monitoring, nil
}

func (o *Orchestrator) gatherAlerts(ctx context.Context) []models.Finding {
	monitoring, err := o.monitoring()
	if err != nil {
		o.logger.Warn("failed to gather alerts", "error", err)
		return nil
	}
	alerts, err := monitoring.GetCurrentAlerts(ctx, nil)
	if err != nil {
		o.logger.Warn("failed to gather alerts", "error", err)
		return nil
	}

	var findings []models.Finding
	for _, alert := range alerts {
		host := alert.Host
		if host == "" {
			host = "unknown"
		}
		findings = append(findings, models.Finding{
			ID:          "find-" + uid(),
			FindingType: models.FindingAlert,
			Source:      "monitoring",
			Summary: fmt.Sprintf("[%s] %s on %s (value: %v)",
				alert.Severity, alert.Name, host, alert.Value),
			Details:    alert.Dump(),
			Confidence: 0.9,
			Timestamp:  now(),
		})
	}
	return findings
}

func (o *Orchestrator) gatherLogs(ctx context.Context) []models.Finding {
	monitoring, err := o.monitoring()
	if err != nil {
		o.logger.Warn("failed to gather logs", "error", err)
		return nil
	}
	logs, err := monitoring.GetLogs(ctx, models.LogQuery{Query: "*"})
	if err != nil {
		o.logger.Warn("failed to gather logs", "error", err)
		return nil
	}
	if len(logs) == 0 {
		return nil
	}

	capped := logs
	if len(capped) > 10 {
		capped = capped[:10]
	}
	entries := make([]map[string]any, 0, len(capped))
	for _, entry := range capped {
		entries = append(entries, entry.Dump())
	}
	return []models.Finding{{
		ID:          "find-" + uid(),
		FindingType: models.FindingLogPattern,
		Source:      "monitoring",
		Summary:     fmt.Sprintf("%d log entries gathered", len(logs)),
		Details:     map[string]any{"entries": entries},
		Confidence:  0.7,
		Timestamp:   now(),
	}}
}

func (o *Orchestrator) gatherChanges(ctx context.Context) []models.Finding {
	provider, err := o.providers.Provider(integrations.CategoryTicketing)
	if err != nil {
		o.logger.Warn("failed to gather changes", "error", err)
		return nil
	}
	ticketing, ok := provider.(integrations.TicketingProvider)
	if !ok {
		o.logger.Warn("failed to gather changes", "error", "provider does not implement the ticketing contract")
		return nil
	}
	changes, err := ticketing.GetRecentChanges(ctx, "4h")
	if err != nil {
		o.logger.Warn("failed to gather changes", "error", err)
		return nil
	}

	var findings []models.Finding
	for _, change := range changes {
		findings = append(findings, models.Finding{
			ID:          "find-" + uid(),
			FindingType: models.FindingRecentChange,
			Source:      "ticketing",
			Summary:     fmt.Sprintf("Change %s: %s", change.Number, change.Description),
			Details:     change.Dump(),
			Confidence:  0.8,
			Timestamp:   now(),
		})
	}
	return findings
}

func (o *Orchestrator) gatherCompute(ctx context.Context) []models.Finding {
	provider, err := o.providers.Provider(integrations.CategoryCompute)
	if err != nil {
		o.logger.Warn("failed to gather compute data", "error", err)
		return nil
	}
	compute, ok := provider.(integrations.ComputeProvider)
	if !ok {
		o.logger.Warn("failed to gather compute data", "error", "provider does not implement the compute contract")
		return nil
	}

	hostInfo, err := compute.GetHostInfo(ctx, "")
	if err != nil {
		o.logger.Warn("failed to gather compute data", "error", err)
		return nil
	}
	processes, err := compute.GetTopProcesses(ctx, hostInfo.Hostname, 5)
	if err != nil {
		o.logger.Warn("failed to gather compute data", "error", err)
		return nil
	}
	if len(processes) == 0 {
		return nil
	}

	processDumps := make([]map[string]any, 0, len(processes))
	for _, proc := range processes {
		processDumps = append(processDumps, proc.Dump())
	}
	return []models.Finding{{
		ID:          "find-" + uid(),
		FindingType: models.FindingMetricAnomaly,
		Source:      "compute",
		Summary: fmt.Sprintf("Top process: %s at %v%% CPU on %s",
			processes[0].Name, processes[0].CPUPercent, hostInfo.Hostname),
		Details: map[string]any{
			"host":      hostInfo.Dump(),
			"processes": processDumps,
		},
		Confidence: 0.85,
		Timestamp:  now(),
	}}
}

func (o *Orchestrator) gatherPagerIncidents(ctx context.Context) []models.Finding {
	provider, err := o.providers.Provider(integrations.CategoryAlerting)
	if err != nil {
		o.logger.Warn("failed to gather alerting data", "error", err)
		return nil
	}
	alerting, ok := provider.(integrations.AlertingProvider)
	if !ok {
		o.logger.Warn("failed to gather alerting data", "error", "provider does not implement the alerting contract")
		return nil
	}
	pagerIncidents, err := alerting.GetActiveIncidents(ctx)
	if err != nil {
		o.logger.Warn("failed to gather alerting data", "error", err)
		return nil
	}

	var findings []models.Finding
	for _, pi := range pagerIncidents {
		findings = append(findings, models.Finding{
			ID:          "find-" + uid(),
			FindingType: models.FindingAlert,
			Source:      "alerting",
			Summary:     fmt.Sprintf("PagerDuty: %s (status: %s)", pi.Title, pi.Status),
			Details:     pi.Dump(),
			Confidence:  0.9,
			Timestamp:   now(),
		})
	}
	return findings
}

// Diagnose runs ML root-cause analysis over the incident's findings.
func (o *Orchestrator) Diagnose(ctx context.Context, incident *models.Incident) (*models.DiagnosticResult, error) {
	o.addTimeline(incident, "diagnosing", "Running ML diagnosis", "", nil)

	diagnosis, err := o.engine.Diagnose(ctx, incident.Description, incident.Findings)
	if err != nil {
		return nil, fmt.Errorf("diagnosing incident %s: %w", incident.ID, err)
	}

	o.addTimeline(incident, "diagnosed",
		fmt.Sprintf("Root cause: %s (confidence: %.0f%%)", diagnosis.RootCause, diagnosis.Confidence*100),
		"ml_engine",
		map[string]any{
			"contributing_factors": diagnosis.ContributingFactors,
			"affected_components":  diagnosis.AffectedComponents,
		})
	return diagnosis, nil
}

// Recommend asks the ML engine for remediation actions and records them on
// the incident, which moves to awaiting_approval.
func (o *Orchestrator) Recommend(ctx context.Context, incident *models.Incident, diagnosis *models.DiagnosticResult) (*models.RecommendationSet, error) {
	recSet, err := o.engine.Recommend(ctx, incident.Description, diagnosis, incident.Findings)
	if err != nil {
		return nil, fmt.Errorf("recommending actions for incident %s: %w", incident.ID, err)
	}

	for _, rec := range recSet.Recommendations {
		incident.Actions = append(incident.Actions, recommendationToAction(rec))
	}

	incident.Status = models.StatusAwaitingApproval
	o.addTimeline(incident, "recommended",
		fmt.Sprintf("%d actions recommended: %s", len(recSet.Recommendations), recSet.Summary),
		"ml_engine", nil)
	return recSet, nil
}

func recommendationToAction(rec models.ActionRecommendation) *models.Action {
	actionType := models.ActionNotify
	if rec.Integration != "" {
		actionType = models.ActionExecute
	}
	return &models.Action{
		ID:               "act-" + uid(),
		ActionType:       actionType,
		Description:      rec.Description,
		RiskLevel:        rec.RiskLevel,
		RequiresApproval: rec.RequiresApproval,
		Integration:      rec.Integration,
		Method:           rec.Method,
		Params:           rec.Params,
	}
}

// PendingApprovals returns the actions still waiting on human sign-off.
func (o *Orchestrator) PendingApprovals(incident *models.Incident) []*models.Action {
	return o.evaluator.Pending(incident.Actions)
}

// ApproveAction records one human approval on an action. With a multi-
// approver policy the action only flips to approved once the threshold is
// met. Returns nil when the action ID is unknown.
func (o *Orchestrator) ApproveAction(incident *models.Incident, actionID, approvedBy string) *models.Action {
	action := incident.FindAction(actionID)
	if action == nil {
		return nil
	}

	nowApproved := o.evaluator.AddApproval(action, approvedBy)
	eventType := "approval_recorded"
	summary := fmt.Sprintf("Approval recorded (%d of %d needed): %s",
		len(action.Approvals), o.evaluator.MinimumApprovals(action), action.Description)
	if nowApproved {
		eventType = "approved"
		summary = "Action fully approved: " + action.Description
	}
	o.addTimeline(incident, eventType, summary, "", map[string]any{
		"action_id":   actionID,
		"approved_by": approvedBy,
		"approvals":   action.Approvals,
	})
	return action
}

// RejectAction rejects an action. Returns nil when the action ID is unknown.
func (o *Orchestrator) RejectAction(incident *models.Incident, actionID, rejectedBy string) *models.Action {
	action := incident.FindAction(actionID)
	if action == nil {
		return nil
	}

	o.evaluator.Reject(action, rejectedBy)
	o.addTimeline(incident, "rejected", "Action rejected: "+action.Description, "", map[string]any{
		"action_id":   actionID,
		"rejected_by": rejectedBy,
	})
	return action
}

// AutoApproveLowRisk approves every undecided action the policy does not
// require a human for. Returns the actions approved by this call.
func (o *Orchestrator) AutoApproveLowRisk(incident *models.Incident) []*models.Action {
	autoApproved := o.evaluator.ApplyAutoApprovals(incident.Actions)
	for _, action := range autoApproved {
		o.addTimeline(incident, "auto_approved",
			"Auto-approved (policy: auto): "+action.Description, "", nil)
	}
	return autoApproved
}

// ExecuteApprovedActions runs every approved, not-yet-executed action in
// order. A failing action records its error and does not stop the rest.
func (o *Orchestrator) ExecuteApprovedActions(ctx context.Context, incident *models.Incident) []*models.Action {
	incident.Status = models.StatusExecuting

	var executed []*models.Action
	for _, action := range incident.Actions {
		if !action.Approved() || action.ExecutedAt != nil {
			continue
		}
		result := o.executeAction(ctx, action)
		executed = append(executed, action)

		outcome := "success"
		if action.Error != "" {
			outcome = "failed"
		}
		o.addTimeline(incident, "executed",
			fmt.Sprintf("Executed: %s (%s)", action.Description, outcome), "", result)
	}
	return executed
}

// executeAction dispatches one action through the integration layer.
// Informational actions with no integration are marked skipped.
func (o *Orchestrator) executeAction(ctx context.Context, action *models.Action) map[string]any {
	executedAt := now()
	action.ExecutedAt = &executedAt

	if action.Integration == "" || action.Method == "" {
		action.Result = map[string]any{"status": "skipped", "reason": "No integration/method specified"}
		return action.Result
	}

	raw, err := o.providers.Call(ctx, action.Integration, action.Method, action.Params)
	if err != nil {
		action.Error = err.Error()
		o.logger.Error("action execution failed",
			"action_id", action.ID, "integration", action.Integration,
			"method", action.Method, "error", err)
		return map[string]any{"status": "error", "error": err.Error()}
	}

	action.Result = models.CoerceResult(raw)
	return action.Result
}

// Verify re-queries monitoring and treats zero firing alerts as resolution.
// A provider failure yields an unresolved result rather than an error.
func (o *Orchestrator) Verify(ctx context.Context, incident *models.Incident, attempt int) *models.VerificationResult {
	incident.Status = models.StatusVerifying
	o.addTimeline(incident, "verifying", fmt.Sprintf("Verification attempt %d", attempt), "", nil)

	monitoring, err := o.monitoring()
	if err != nil {
		return o.verificationError(incident, attempt, err)
	}
	alerts, err := monitoring.GetCurrentAlerts(ctx, nil)
	if err != nil {
		return o.verificationError(incident, attempt, err)
	}

	active := 0
	for _, alert := range alerts {
		if alert.Triggered() {
			active++
		}
	}
	cleared := len(alerts) - active
	resolved := active == 0

	detail := fmt.Sprintf("%d alerts still firing", active)
	if resolved {
		detail = "No active alerts"
	}
	result := &models.VerificationResult{
		Resolved:          resolved,
		ActiveAlertCount:  active,
		ClearedAlertCount: cleared,
		Attempts:          attempt,
		Detail:            detail,
	}

	if resolved {
		incident.Status = models.StatusResolved
		resolvedAt := now()
		incident.ResolvedAt = &resolvedAt
		o.addTimeline(incident, "resolved", "Verification passed, no active alerts", "", nil)
	} else {
		o.addTimeline(incident, "verification_failed",
			fmt.Sprintf("Attempt %d: %d alerts still active", attempt, active), "", nil)
	}
	return result
}

func (o *Orchestrator) verificationError(incident *models.Incident, attempt int, err error) *models.VerificationResult {
	o.logger.Warn("verification error", "error", err)
	o.addTimeline(incident, "verification_error", fmt.Sprintf("Verification error: %v", err), "", nil)
	return &models.VerificationResult{
		Resolved: false,
		Attempts: attempt,
		Detail:   fmt.Sprintf("Verification error: %v", err),
	}
}

// VerifyWithRetry retries verification with a delay between attempts (never
// before the first). It returns the first resolved result, or the last
// failed one after all attempts.
func (o *Orchestrator) VerifyWithRetry(ctx context.Context, incident *models.Incident, maxAttempts int, interval time.Duration) (*models.VerificationResult, error) {
	result := &models.VerificationResult{Resolved: false}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && interval > 0 {
			if err := o.sleep(ctx, interval); err != nil {
				return result, err
			}
		}
		result = o.Verify(ctx, incident, attempt)
		if result.Resolved {
			break
		}
	}
	return result, nil
}

// Summarize generates the incident's narrative summary and stores it.
func (o *Orchestrator) Summarize(ctx context.Context, incident *models.Incident) (string, error) {
	summary, err := o.engine.Summarize(ctx, incident)
	if err != nil {
		return "", fmt.Errorf("summarizing incident %s: %w", incident.ID, err)
	}
	incident.Summary = summary
	o.addTimeline(incident, "summarized", "Incident summary generated", "ml_engine", nil)
	return summary, nil
}

// RunDiagnosis runs the workflow up to the recommendation stage: create,
// classify, gather, diagnose, recommend, auto-approve low-risk. The incident
// comes back awaiting approval with its actions populated.
func (o *Orchestrator) RunDiagnosis(ctx context.Context, description string) (*models.Incident, error) {
	incident, err := o.CreateIncident(ctx, description)
	if err != nil {
		return nil, err
	}
	o.GatherContext(ctx, incident)

	diagnosis, err := o.Diagnose(ctx, incident)
	if err != nil {
		return nil, err
	}
	if _, err := o.Recommend(ctx, incident, diagnosis); err != nil {
		return nil, err
	}
	o.AutoApproveLowRisk(incident)
	return incident, nil
}

// RunFullWorkflow is the end-to-end path: diagnose, execute whatever
// auto-qualified, verify with retries, summarize. Actions needing human
// approval stay pending; only approved actions run.
func (o *Orchestrator) RunFullWorkflow(ctx context.Context, description string, verifyMaxAttempts int, verifyInterval time.Duration) (*models.Incident, *models.VerificationResult, error) {
	incident, err := o.RunDiagnosis(ctx, description)
	if err != nil {
		return nil, nil, err
	}
	o.ExecuteApprovedActions(ctx, incident)

	verification, err := o.VerifyWithRetry(ctx, incident, verifyMaxAttempts, verifyInterval)
	if err != nil {
		return incident, verification, err
	}
	if _, err := o.Summarize(ctx, incident); err != nil {
		return incident, verification, err
	}
	return incident, verification, nil
}
