// Package ml provides the decision capability behind classification,
// diagnosis, recommendation and summarization. Two implementations exist: a
// scenario-aware mock and an engine backed by the Anthropic API.
package ml

import (
	"context"
	"errors"
	"fmt"

	"github.com/oncallops/runbookd/pkg/models"
)

// ErrMLEngine is the sentinel for ML backend failures.
var ErrMLEngine = errors.New("ml engine error")

// EngineError wraps a failure in one ML operation.
type EngineError struct {
	Operation string
	Err       error
}

// Error returns formatted error message
func (e *EngineError) Error() string {
	return fmt.Sprintf("ml engine: %s: %v", e.Operation, e.Err)
}

// Unwrap returns the sentinel for errors.Is matching
func (e *EngineError) Unwrap() error { return ErrMLEngine }

// Engine is the decision capability. Implementations return typed results;
// responses that cannot be parsed degrade to low-confidence defaults rather
// than erroring.
type Engine interface {
	// Classify categorizes a problem description.
	Classify(ctx context.Context, problemDescription string) (*models.Classification, error)

	// Diagnose analyzes gathered evidence and determines a root cause.
	Diagnose(ctx context.Context, problemDescription string, findings []models.Finding) (*models.DiagnosticResult, error)

	// Recommend produces ranked remediation actions from a diagnosis.
	Recommend(ctx context.Context, problemDescription string, diagnosis *models.DiagnosticResult, findings []models.Finding) (*models.RecommendationSet, error)

	// Summarize writes a narrative incident summary.
	Summarize(ctx context.Context, incident *models.Incident) (string, error)
}
