// Package runbook implements the declarative YAML workflow engine: parsing
// and validating runbook definitions, resolving parameter templates, and
// executing steps against configured integrations with approval gates.
package runbook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oncallops/runbookd/pkg/integrations"
	"github.com/oncallops/runbookd/pkg/models"
)

// Step actions.
const (
	ActionGather     = "gather"
	ActionExecute    = "execute"
	ActionMLDecision = "ml_decision"
)

var validActions = map[string]bool{
	ActionGather:     true,
	ActionExecute:    true,
	ActionMLDecision: true,
}

// Step is a single step in a runbook definition.
type Step struct {
	ID          string         `yaml:"id"`
	Action      string         `yaml:"action"`
	Description string         `yaml:"description"`
	Integration string         `yaml:"integration,omitempty"`
	Method      string         `yaml:"method,omitempty"`
	Params      map[string]any `yaml:"params,omitempty"`
	// Step IDs whose results feed ml_decision steps as context.
	Context          []string         `yaml:"context,omitempty"`
	RequiresApproval bool             `yaml:"requires_approval,omitempty"`
	RiskLevel        models.RiskLevel `yaml:"risk_level,omitempty"`
	// Reserved for future conditional execution logic.
	Condition string `yaml:"condition,omitempty"`
}

// validate checks a single step against the shared method allow-list.
func (s *Step) validate() error {
	if s.ID == "" {
		return fmt.Errorf("step is missing an id")
	}
	if !validActions[s.Action] {
		return fmt.Errorf("step %q: invalid action %q, must be one of: %s",
			s.ID, s.Action, strings.Join(sortedKeys(validActions), ", "))
	}
	if s.Action == ActionGather || s.Action == ActionExecute {
		if s.Integration == "" {
			return fmt.Errorf("step %q (action=%s) requires 'integration'", s.ID, s.Action)
		}
		if s.Method == "" {
			return fmt.Errorf("step %q (action=%s) requires 'method'", s.ID, s.Action)
		}
		if !integrations.IsValidIntegration(s.Integration) {
			return fmt.Errorf("step %q: unknown integration %q, valid: %s",
				s.ID, s.Integration, strings.Join(integrations.ValidIntegrations(), ", "))
		}
		if !integrations.IsValidMethod(s.Integration, s.Method) {
			return fmt.Errorf("step %q: unknown method %q for integration %q, valid: %s",
				s.ID, s.Method, s.Integration, strings.Join(integrations.ValidMethods(s.Integration), ", "))
		}
	}
	if s.RiskLevel != "" && !s.RiskLevel.IsValid() {
		return fmt.Errorf("step %q: invalid risk_level %q", s.ID, s.RiskLevel)
	}
	return nil
}

// Runbook is a fully validated workflow definition loaded from YAML.
type Runbook struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Human-readable trigger condition; informational, not evaluated.
	Trigger  string                 `yaml:"trigger,omitempty"`
	Severity models.Severity        `yaml:"severity,omitempty"`
	Category models.ProblemCategory `yaml:"category,omitempty"`
	Tags     []string               `yaml:"tags,omitempty"`
	Steps    []Step                 `yaml:"steps"`

	// Set by the parser after loading; not part of the YAML schema.
	SourcePath string `yaml:"-"`
}

// validate checks structural invariants across steps.
func (r *Runbook) validate() error {
	if r.Name == "" {
		return fmt.Errorf("runbook is missing a name")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("runbook %q has no steps", r.Name)
	}

	seen := make(map[string]bool, len(r.Steps))
	var duplicates []string
	for i := range r.Steps {
		if err := r.Steps[i].validate(); err != nil {
			return err
		}
		if seen[r.Steps[i].ID] {
			duplicates = append(duplicates, r.Steps[i].ID)
		}
		seen[r.Steps[i].ID] = true
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return fmt.Errorf("duplicate step IDs: %s", strings.Join(duplicates, ", "))
	}

	for i := range r.Steps {
		for _, ref := range r.Steps[i].Context {
			if !seen[ref] {
				return fmt.Errorf("step %q references unknown step ID %q in context",
					r.Steps[i].ID, ref)
			}
		}
	}
	return nil
}

// StepIDs returns the step IDs in definition order.
func (r *Runbook) StepIDs() []string {
	ids := make([]string, len(r.Steps))
	for i := range r.Steps {
		ids[i] = r.Steps[i].ID
	}
	return ids
}

// GetStep returns the step with the given ID, or nil.
func (r *Runbook) GetStep(stepID string) *Step {
	for i := range r.Steps {
		if r.Steps[i].ID == stepID {
			return &r.Steps[i]
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
