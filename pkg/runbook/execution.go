package runbook

import "time"

// StepStatus is the outcome state of one step.
type StepStatus string

const (
	StepPending         StepStatus = "pending"
	StepSuccess         StepStatus = "success"
	StepFailed          StepStatus = "failed"
	StepSkipped         StepStatus = "skipped"
	StepPendingApproval StepStatus = "pending_approval"
)

// ExecutionStatus is the overall state of a runbook run.
type ExecutionStatus string

const (
	ExecutionRunning          ExecutionStatus = "running"
	ExecutionAwaitingApproval ExecutionStatus = "awaiting_approval"
	ExecutionCompleted        ExecutionStatus = "completed"
	ExecutionFailed           ExecutionStatus = "failed"
)

// StepResult is the outcome of executing a single runbook step.
type StepResult struct {
	StepID        string         `json:"step_id"`
	Status        StepStatus     `json:"status"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutedAt    *time.Time     `json:"executed_at,omitempty"`
	SkippedReason string         `json:"skipped_reason,omitempty"`
}

// Execution tracks the complete state of one runbook run. Step outcomes are
// kept twice on purpose: StepResults holds the typed audit record, Results
// holds the raw maps templates resolve against.
type Execution struct {
	ID          string                 `json:"id"`
	RunbookName string                 `json:"runbook_name"`
	IncidentID  string                 `json:"incident_id"`
	Status      ExecutionStatus        `json:"status"`
	StepResults map[string]*StepResult `json:"step_results"`
	Results     map[string]any         `json:"results"`
	// Step IDs currently blocked on operator approval.
	PendingApprovalSteps []string   `json:"pending_approval_steps,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}
