// Package approval implements risk-level-based approval policies for
// incident actions.
package approval

import "github.com/oncallops/runbookd/pkg/models"

// PolicyType says how much human input an action needs before execution.
type PolicyType string

const (
	// PolicyAuto needs no human input; the system auto-approves.
	PolicyAuto PolicyType = "auto"
	// PolicyRequireOne needs one human approver.
	PolicyRequireOne PolicyType = "require_one"
	// PolicyRequireTwo needs two distinct human approvers.
	PolicyRequireTwo PolicyType = "require_two"
)

// Policy maps each risk level to a policy type.
type Policy struct {
	Low      PolicyType
	Medium   PolicyType
	High     PolicyType
	Critical PolicyType
}

// DefaultPolicy is the standard risk-to-policy mapping.
func DefaultPolicy() Policy {
	return Policy{
		Low:      PolicyAuto,
		Medium:   PolicyRequireOne,
		High:     PolicyRequireOne,
		Critical: PolicyRequireTwo,
	}
}

// Get returns the policy type for a risk level. Unknown levels fall back to
// the critical tier.
func (p Policy) Get(level models.RiskLevel) PolicyType {
	switch level {
	case models.RiskLow:
		return p.Low
	case models.RiskMedium:
		return p.Medium
	case models.RiskHigh:
		return p.High
	case models.RiskCritical:
		return p.Critical
	default:
		return p.Critical
	}
}

// Evaluator applies a Policy to actions. All methods are pure over the
// action state except AddApproval, Reject and ApplyAutoApprovals, which
// mutate the action in place.
type Evaluator struct {
	policy Policy
}

// NewEvaluator creates an evaluator with the given policy.
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// NewDefaultEvaluator creates an evaluator with the default policy.
func NewDefaultEvaluator() *Evaluator {
	return NewEvaluator(DefaultPolicy())
}

// PolicyFor returns the effective policy type for an action. Actions that
// do not require approval are always auto.
func (e *Evaluator) PolicyFor(action *models.Action) PolicyType {
	if !action.RequiresApproval {
		return PolicyAuto
	}
	return e.policy.Get(action.RiskLevel)
}

// MinimumApprovals returns the number of distinct human approvals needed.
func (e *Evaluator) MinimumApprovals(action *models.Action) int {
	switch e.PolicyFor(action) {
	case PolicyAuto:
		return 0
	case PolicyRequireOne:
		return 1
	default:
		return 2
	}
}

// RequiresHumanApproval reports whether the action needs at least one
// human approver.
func (e *Evaluator) RequiresHumanApproval(action *models.Action) bool {
	return e.MinimumApprovals(action) > 0
}

// IsApproved reports whether the action has met its approval threshold or
// is auto-approvable.
func (e *Evaluator) IsApproved(action *models.Action) bool {
	needed := e.MinimumApprovals(action)
	if needed == 0 {
		return true
	}
	return len(action.Approvals) >= needed
}

// IsRejected reports whether the action was rejected.
func (e *Evaluator) IsRejected(action *models.Action) bool {
	return action.RejectedBy != ""
}

// AddApproval records a human approval. Duplicate approvals from the same
// approver are ignored. Once the threshold is met the action's decision is
// set to approved and ApprovedBy records the last distinct approver.
//
// Returns true if the action is now fully approved.
func (e *Evaluator) AddApproval(action *models.Action, approver string) bool {
	if !action.HasApprover(approver) {
		action.Approvals = append(action.Approvals, approver)
	}
	if len(action.Approvals) > 0 {
		action.ApprovedBy = action.Approvals[len(action.Approvals)-1]
	} else {
		action.ApprovedBy = approver
	}
	if e.IsApproved(action) {
		action.Decision = models.DecisionApproved
		return true
	}
	return false
}

// Reject records a rejection, overriding any prior approvals.
func (e *Evaluator) Reject(action *models.Action, rejectedBy string) {
	action.Decision = models.DecisionRejected
	action.RejectedBy = rejectedBy
}

// ApplyAutoApprovals approves every action that needs no human input,
// skipping actions already decided either way. Returns the actions
// auto-approved by this call.
func (e *Evaluator) ApplyAutoApprovals(actions []*models.Action) []*models.Action {
	var approved []*models.Action
	for _, action := range actions {
		if action.Decision.Decided() {
			continue
		}
		if e.RequiresHumanApproval(action) {
			continue
		}
		action.Decision = models.DecisionApproved
		action.ApprovedBy = "auto"
		approved = append(approved, action)
	}
	return approved
}

// Pending returns actions that require human approval and have not yet been
// approved or rejected.
func (e *Evaluator) Pending(actions []*models.Action) []*models.Action {
	var pending []*models.Action
	for _, action := range actions {
		if e.RequiresHumanApproval(action) && !e.IsApproved(action) && !e.IsRejected(action) {
			pending = append(pending, action)
		}
	}
	return pending
}
