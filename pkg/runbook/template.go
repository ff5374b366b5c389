package runbook

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/oncallops/runbookd/pkg/models"
)

var templateRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// resolveFieldPath traverses a dot-separated field path through nested
// maps. Returns nil when any segment is missing.
func resolveFieldPath(obj any, fieldPath string) any {
	current := obj
	for _, part := range strings.Split(fieldPath, ".") {
		if current == nil {
			return nil
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// incidentAsMap renders the incident through its JSON form so templates see
// the same field names the API exposes.
func incidentAsMap(incident *models.Incident) map[string]any {
	if incident == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(incident)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// ResolveTemplate replaces {{ incident.field }} and {{ step_id.field }}
// placeholders in a string. Nested field access is supported through dots.
// Unresolvable references are left verbatim so callers can detect them.
func ResolveTemplate(value string, incident *models.Incident, stepResults map[string]any) string {
	var incidentMap map[string]any

	return templateRe.ReplaceAllStringFunc(value, func(match string) string {
		expr := templateRe.FindStringSubmatch(match)[1]
		source, field, found := strings.Cut(expr, ".")
		if !found {
			return match
		}

		if source == "incident" {
			if incidentMap == nil {
				incidentMap = incidentAsMap(incident)
			}
			if val := resolveFieldPath(incidentMap, field); val != nil {
				return stringify(val)
			}
			return match
		}

		if stepResult, ok := stepResults[source]; ok {
			if val := resolveFieldPath(stepResult, field); val != nil {
				return stringify(val)
			}
		}
		return match
	})
}

// ResolveParams recursively resolves all template placeholders inside a
// params map. Non-string values pass through untouched.
func ResolveParams(params map[string]any, incident *models.Incident, stepResults map[string]any) map[string]any {
	resolved := make(map[string]any, len(params))
	for key, val := range params {
		switch v := val.(type) {
		case string:
			resolved[key] = ResolveTemplate(v, incident, stepResults)
		case map[string]any:
			resolved[key] = ResolveParams(v, incident, stepResults)
		case []any:
			items := make([]any, len(v))
			for i, item := range v {
				if s, ok := item.(string); ok {
					items[i] = ResolveTemplate(s, incident, stepResults)
				} else {
					items[i] = item
				}
			}
			resolved[key] = items
		default:
			resolved[key] = val
		}
	}
	return resolved
}

// stringify renders a resolved template value. JSON numbers print without a
// trailing .0 when they are whole.
func stringify(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
