package models

import "time"

// MaxTitleLength bounds the derived incident title.
const MaxTitleLength = 120

// Finding is a piece of evidence discovered during diagnosis.
type Finding struct {
	ID          string         `json:"id"`
	FindingType FindingType    `json:"finding_type"`
	Source      string         `json:"source"`
	Summary     string         `json:"summary"`
	Details     map[string]any `json:"details,omitempty"`
	Confidence  float64        `json:"confidence"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Action is a recommended or executed remediation/notification.
//
// Decision state is a tri-state (undecided/approved/rejected) rather than an
// optional boolean. Approvals is an ordered set: membership has set
// semantics, insertion order is retained for audit.
type Action struct {
	ID               string     `json:"id"`
	ActionType       ActionType `json:"action_type"`
	Description      string     `json:"description"`
	RiskLevel        RiskLevel  `json:"risk_level"`
	RequiresApproval bool       `json:"requires_approval"`

	Decision   Decision `json:"decision,omitempty"`
	Approvals  []string `json:"approvals,omitempty"`
	ApprovedBy string   `json:"approved_by,omitempty"`
	RejectedBy string   `json:"rejected_by,omitempty"`

	// Integration and Method are empty for informational actions.
	Integration string         `json:"integration,omitempty"`
	Method      string         `json:"method,omitempty"`
	Params      map[string]any `json:"params,omitempty"`

	Result     map[string]any `json:"result,omitempty"`
	ExecutedAt *time.Time     `json:"executed_at,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Approved reports whether the action's decision is approved.
func (a *Action) Approved() bool { return a.Decision == DecisionApproved }

// HasApprover reports whether the named approver already appears in the
// approvals list.
func (a *Action) HasApprover(approver string) bool {
	for _, name := range a.Approvals {
		if name == approver {
			return true
		}
	}
	return false
}

// TimelineEntry is a single append-only audit record on an incident.
type TimelineEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Summary   string         `json:"summary"`
	Source    string         `json:"source,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Classification is the ML engine's category/severity verdict.
type Classification struct {
	Category   ProblemCategory `json:"category"`
	Severity   Severity        `json:"severity"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning,omitempty"`
}

// DiagnosticResult is the ML engine's root-cause analysis.
type DiagnosticResult struct {
	RootCause           string   `json:"root_cause"`
	EvidenceSummary     string   `json:"evidence_summary"`
	Confidence          float64  `json:"confidence"`
	ContributingFactors []string `json:"contributing_factors,omitempty"`
	AffectedComponents  []string `json:"affected_components,omitempty"`
}

// ActionRecommendation is a single recommended action from the ML engine.
type ActionRecommendation struct {
	Description      string         `json:"description"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	RequiresApproval bool           `json:"requires_approval"`
	Integration      string         `json:"integration,omitempty"`
	Method           string         `json:"method,omitempty"`
	Params           map[string]any `json:"params,omitempty"`
	Reasoning        string         `json:"reasoning,omitempty"`
}

// RecommendationSet is a ranked set of action recommendations.
type RecommendationSet struct {
	Recommendations         []ActionRecommendation `json:"recommendations"`
	Summary                 string                 `json:"summary,omitempty"`
	RequiresImmediateAction bool                   `json:"requires_immediate_action"`
}

// VerificationResult reports whether post-remediation monitoring considers
// the problem resolved.
type VerificationResult struct {
	Resolved          bool   `json:"resolved"`
	ActiveAlertCount  int    `json:"active_alert_count"`
	ClearedAlertCount int    `json:"cleared_alert_count"`
	Attempts          int    `json:"attempts"`
	Detail            string `json:"detail,omitempty"`
}

// Incident is the top-level aggregate tracking a single problem report.
// It is owned by the caller; the orchestrator and runbook executor mutate
// it in place and return it.
type Incident struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Status         IncidentStatus  `json:"status"`
	Severity       Severity        `json:"severity"`
	Category       ProblemCategory `json:"category"`
	Classification *Classification `json:"classification,omitempty"`

	Findings []Finding       `json:"findings,omitempty"`
	Actions  []*Action       `json:"actions,omitempty"`
	Timeline []TimelineEntry `json:"timeline,omitempty"`

	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// FindAction returns the action with the given ID, or nil.
func (i *Incident) FindAction(actionID string) *Action {
	for _, action := range i.Actions {
		if action.ID == actionID {
			return action
		}
	}
	return nil
}

// AddTimeline appends an audit entry. Entries are never removed.
func (i *Incident) AddTimeline(entry TimelineEntry) {
	i.Timeline = append(i.Timeline, entry)
}

// TruncateTitle derives an incident title from a free-text description.
func TruncateTitle(description string) string {
	runes := []rune(description)
	if len(runes) <= MaxTitleLength {
		return description
	}
	return string(runes[:MaxTitleLength])
}
