package ml

import (
	"fmt"
	"strings"

	"github.com/oncallops/runbookd/pkg/models"
)

const classificationSystem = `You are an expert IT operations analyst. Your job is to classify incoming problem reports into a category and severity level.

Respond ONLY with valid JSON in this exact format:
{
  "category": "<one of: compute, network, database, deployment, storage, security, application, unknown>",
  "severity": "<one of: low, medium, high, critical>",
  "confidence": <float between 0.0 and 1.0>,
  "reasoning": "<one sentence explaining your classification>"
}`

const diagnosisSystem = `You are an expert IT operations analyst performing root cause analysis. You will be given a problem description and operational evidence gathered from monitoring, ticketing, and infrastructure systems.

Analyze the evidence and determine the most likely root cause.

Respond ONLY with valid JSON in this exact format:
{
  "root_cause": "<concise description of the root cause>",
  "evidence_summary": "<summary of the key evidence that supports your conclusion>",
  "confidence": <float between 0.0 and 1.0>,
  "contributing_factors": ["<factor 1>", "<factor 2>", ...],
  "affected_components": ["<component 1>", "<component 2>", ...]
}`

const resolutionSystem = `You are an expert IT operations analyst recommending remediation actions. You will be given a problem description, a root cause diagnosis, and supporting evidence.

Recommend a ranked list of actions to resolve the issue. For each action, specify the risk level and whether human approval is required before execution.

Available integrations and methods:
- compute: restart_service
- ticketing: create_incident, update_incident, add_work_note
- communication: send_message, create_channel
- alerting: trigger_alert, acknowledge_alert

Respond ONLY with valid JSON in this exact format:
{
  "summary": "<one sentence summary of the resolution plan>",
  "requires_immediate_action": <true or false>,
  "recommendations": [
    {
      "description": "<what to do>",
      "risk_level": "<one of: low, medium, high, critical>",
      "requires_approval": <true or false>,
      "integration": "<integration category or null>",
      "method": "<method name or null>",
      "params": { "<key>": "<value>" },
      "reasoning": "<why this action>"
    }
  ]
}

Order recommendations from most to least important. Tag destructive or state-changing actions as requiring approval.`

const summarizationSystem = `You are an expert IT operations analyst writing an incident summary. You will be given the full details of a resolved (or in-progress) incident including its timeline, findings, and actions taken.

Write a clear, concise incident summary suitable for a post-incident review. Include:
1. What happened (the problem)
2. Root cause
3. Key evidence that led to the diagnosis
4. Actions taken to resolve
5. Current status

Write in plain prose, 3-5 paragraphs. Be factual and concise.`

func buildClassificationPrompt(problemDescription string) (system, user string) {
	return classificationSystem,
		"Classify the following problem report:\n\n" + problemDescription
}

func buildDiagnosisPrompt(problemDescription string, findings []models.Finding) (system, user string) {
	user = fmt.Sprintf("PROBLEM:\n%s\n\n%s\n\nBased on the evidence above, determine the root cause.",
		problemDescription, formatFindings(findings))
	return diagnosisSystem, user
}

func buildResolutionPrompt(problemDescription string, diagnosis *models.DiagnosticResult, findings []models.Finding) (system, user string) {
	factors := strings.Join(diagnosis.ContributingFactors, ", ")
	if factors == "" {
		factors = "None identified"
	}
	components := strings.Join(diagnosis.AffectedComponents, ", ")
	if components == "" {
		components = "None identified"
	}
	user = fmt.Sprintf(`PROBLEM:
%s

ROOT CAUSE DIAGNOSIS:
  Root cause: %s
  Evidence: %s
  Confidence: %.0f%%
  Contributing factors: %s
  Affected components: %s

%s

Recommend actions to resolve this issue.`,
		problemDescription, diagnosis.RootCause, diagnosis.EvidenceSummary,
		diagnosis.Confidence*100, factors, components, formatFindings(findings))
	return resolutionSystem, user
}

func buildSummarizationPrompt(incident *models.Incident) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "INCIDENT: %s - %s\n", incident.ID, incident.Title)
	fmt.Fprintf(&b, "Status: %s\n", incident.Status)
	fmt.Fprintf(&b, "Severity: %s\n", incident.Severity)
	fmt.Fprintf(&b, "Category: %s\n", incident.Category)

	if incident.Classification != nil {
		fmt.Fprintf(&b, "Classification: %s (confidence: %.0f%%)\n",
			incident.Classification.Category, incident.Classification.Confidence*100)
		if incident.Classification.Reasoning != "" {
			fmt.Fprintf(&b, "  Reasoning: %s\n", incident.Classification.Reasoning)
		}
	}

	if len(incident.Timeline) > 0 {
		b.WriteString("\nTIMELINE:\n")
		for _, entry := range incident.Timeline {
			fmt.Fprintf(&b, "  %s [%s] %s\n",
				entry.Timestamp.Format("2006-01-02T15:04:05Z"), entry.EventType, entry.Summary)
		}
	}

	if len(incident.Findings) > 0 {
		b.WriteString("\nFINDINGS:\n")
		for _, f := range incident.Findings {
			fmt.Fprintf(&b, "  - [%s] %s (source: %s)\n", f.FindingType, f.Summary, f.Source)
		}
	}

	if len(incident.Actions) > 0 {
		b.WriteString("\nACTIONS:\n")
		for _, a := range incident.Actions {
			status := "pending"
			switch {
			case a.ExecutedAt != nil:
				status = "executed"
			case a.Approved():
				status = "approved"
			}
			fmt.Fprintf(&b, "  - %s - %s (risk: %s)\n", a.Description, status, a.RiskLevel)
			if a.Error != "" {
				fmt.Fprintf(&b, "    ERROR: %s\n", a.Error)
			}
		}
	}

	b.WriteString("\nWrite the incident summary.")
	return summarizationSystem, b.String()
}

// formatFindings renders findings as a structured evidence block for prompt
// injection.
func formatFindings(findings []models.Finding) string {
	if len(findings) == 0 {
		return "No evidence gathered yet."
	}
	lines := []string{"GATHERED EVIDENCE:"}
	for i, f := range findings {
		lines = append(lines, fmt.Sprintf("  %d. [%s] %s (source: %s, confidence: %.0f%%)",
			i+1, f.FindingType, f.Summary, f.Source, f.Confidence*100))
		for key, value := range f.Details {
			lines = append(lines, fmt.Sprintf("      %s: %v", key, value))
		}
	}
	return strings.Join(lines, "\n")
}
