package models

// Severity grades how badly an incident impacts the system.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// RiskLevel grades how dangerous an action is to execute.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IsValid checks if the risk level is valid
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// IncidentStatus tracks an incident through its lifecycle. Transitions move
// forward except verifying→diagnosing during retry cycles.
type IncidentStatus string

const (
	StatusNew              IncidentStatus = "new"
	StatusTriaged          IncidentStatus = "triaged"
	StatusDiagnosing       IncidentStatus = "diagnosing"
	StatusAwaitingApproval IncidentStatus = "awaiting_approval"
	StatusExecuting        IncidentStatus = "executing"
	StatusVerifying        IncidentStatus = "verifying"
	StatusResolved         IncidentStatus = "resolved"
	StatusClosed           IncidentStatus = "closed"
)

// IsValid checks if the incident status is valid
func (s IncidentStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusTriaged, StatusDiagnosing, StatusAwaitingApproval,
		StatusExecuting, StatusVerifying, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

// ActionType distinguishes what kind of work an action represents.
type ActionType string

const (
	ActionGather     ActionType = "gather"
	ActionMLDecision ActionType = "ml_decision"
	ActionExecute    ActionType = "execute"
	ActionNotify     ActionType = "notify"
)

// ProblemCategory is the coarse classification of a problem report.
type ProblemCategory string

const (
	CategoryCompute     ProblemCategory = "compute"
	CategoryNetwork     ProblemCategory = "network"
	CategoryDatabase    ProblemCategory = "database"
	CategoryDeployment  ProblemCategory = "deployment"
	CategoryStorage     ProblemCategory = "storage"
	CategorySecurity    ProblemCategory = "security"
	CategoryApplication ProblemCategory = "application"
	CategoryUnknown     ProblemCategory = "unknown"
)

// IsValid checks if the problem category is valid
func (c ProblemCategory) IsValid() bool {
	switch c {
	case CategoryCompute, CategoryNetwork, CategoryDatabase, CategoryDeployment,
		CategoryStorage, CategorySecurity, CategoryApplication, CategoryUnknown:
		return true
	default:
		return false
	}
}

// FindingType labels the kind of evidence a finding carries.
type FindingType string

const (
	FindingAlert         FindingType = "alert"
	FindingMetricAnomaly FindingType = "metric_anomaly"
	FindingLogPattern    FindingType = "log_pattern"
	FindingConfiguration FindingType = "configuration"
	FindingRecentChange  FindingType = "recent_change"
	FindingCorrelation   FindingType = "correlation"
)

// Decision is the tri-state approval outcome of an action. The zero value
// behaves as undecided.
type Decision string

const (
	DecisionUndecided Decision = "undecided"
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
)

// Decided reports whether the decision has been made either way.
func (d Decision) Decided() bool {
	return d == DecisionApproved || d == DecisionRejected
}
