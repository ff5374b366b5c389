package ml

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oncallops/runbookd/pkg/models"
)

// extractJSON pulls a JSON object out of a model response that may be
// wrapped in markdown code fences.
func extractJSON(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.Join(kept, "\n")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// parseClassification parses a model response into a Classification.
// Unparseable responses degrade to an unknown/medium default.
func parseClassification(raw string) *models.Classification {
	data, err := extractJSON(raw)
	if err != nil {
		slog.Warn("failed to parse classification response", "error", err)
		return &models.Classification{
			Category:   models.CategoryUnknown,
			Severity:   models.SeverityMedium,
			Confidence: 0.0,
			Reasoning:  fmt.Sprintf("Parse error: %v. Raw response: %s", err, truncate(raw, 200)),
		}
	}

	category := models.ProblemCategory(stringField(data, "category", "unknown"))
	if !category.IsValid() {
		category = models.CategoryUnknown
	}
	severity := models.Severity(stringField(data, "severity", "medium"))
	if !severity.IsValid() {
		severity = models.SeverityMedium
	}
	return &models.Classification{
		Category:   category,
		Severity:   severity,
		Confidence: floatField(data, "confidence"),
		Reasoning:  stringField(data, "reasoning", ""),
	}
}

// parseDiagnosticResult parses a model response into a DiagnosticResult.
func parseDiagnosticResult(raw string) *models.DiagnosticResult {
	data, err := extractJSON(raw)
	if err != nil {
		slog.Warn("failed to parse diagnostic result", "error", err)
		return &models.DiagnosticResult{
			RootCause:       "Parse error - raw response available",
			EvidenceSummary: truncate(raw, 500),
			Confidence:      0.0,
		}
	}
	return &models.DiagnosticResult{
		RootCause:           stringField(data, "root_cause", "Unknown"),
		EvidenceSummary:     stringField(data, "evidence_summary", ""),
		Confidence:          floatField(data, "confidence"),
		ContributingFactors: stringListField(data, "contributing_factors"),
		AffectedComponents:  stringListField(data, "affected_components"),
	}
}

// parseRecommendationSet parses a model response into a RecommendationSet.
func parseRecommendationSet(raw string) *models.RecommendationSet {
	data, err := extractJSON(raw)
	if err != nil {
		slog.Warn("failed to parse recommendation response", "error", err)
		return &models.RecommendationSet{
			Summary: fmt.Sprintf("Parse error: %v. Raw response: %s", err, truncate(raw, 200)),
		}
	}

	set := &models.RecommendationSet{
		Summary:                 stringField(data, "summary", ""),
		RequiresImmediateAction: boolField(data, "requires_immediate_action"),
	}
	rawRecs, _ := data["recommendations"].([]any)
	for _, item := range rawRecs {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		risk := models.RiskLevel(stringField(rec, "risk_level", "low"))
		if !risk.IsValid() {
			risk = models.RiskLow
		}
		params, _ := rec["params"].(map[string]any)
		set.Recommendations = append(set.Recommendations, models.ActionRecommendation{
			Description:      stringField(rec, "description", ""),
			RiskLevel:        risk,
			RequiresApproval: boolField(rec, "requires_approval"),
			Integration:      stringField(rec, "integration", ""),
			Method:           stringField(rec, "method", ""),
			Params:           params,
			Reasoning:        stringField(rec, "reasoning", ""),
		})
	}
	return set
}

// cleanSummary strips a leading markdown heading from a summary response.
func cleanSummary(raw string) string {
	text := strings.TrimSpace(raw)
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "#") {
		lines = lines[1:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stringField(data map[string]any, key, fallback string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return fallback
}

func floatField(data map[string]any, key string) float64 {
	if v, ok := data[key].(float64); ok {
		return v
	}
	return 0.0
}

func boolField(data map[string]any, key string) bool {
	v, _ := data[key].(bool)
	return v
}

func stringListField(data map[string]any, key string) []string {
	raw, _ := data[key].([]any)
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
