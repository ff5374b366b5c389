package ml

import (
	"context"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// MockEngine returns scenario-aware canned responses without an API key.
type MockEngine struct {
	settings *config.Settings
}

// NewMockEngine creates a mock engine over settings.
func NewMockEngine(settings *config.Settings) *MockEngine {
	return &MockEngine{settings: settings}
}

func (m *MockEngine) scenario() string { return m.settings.MockScenario }

func (m *MockEngine) Classify(ctx context.Context, problemDescription string) (*models.Classification, error) {
	if c, ok := cannedClassifications[m.scenario()]; ok {
		out := c
		return &out, nil
	}
	out := defaultClassification
	return &out, nil
}

func (m *MockEngine) Diagnose(ctx context.Context, problemDescription string, findings []models.Finding) (*models.DiagnosticResult, error) {
	if d, ok := cannedDiagnoses[m.scenario()]; ok {
		out := d
		return &out, nil
	}
	out := defaultDiagnosis
	return &out, nil
}

func (m *MockEngine) Recommend(ctx context.Context, problemDescription string, diagnosis *models.DiagnosticResult, findings []models.Finding) (*models.RecommendationSet, error) {
	if r, ok := cannedRecommendations[m.scenario()]; ok {
		out := r
		return &out, nil
	}
	out := defaultRecommendations
	return &out, nil
}

func (m *MockEngine) Summarize(ctx context.Context, incident *models.Incident) (string, error) {
	if s, ok := cannedSummaries[m.scenario()]; ok {
		return s, nil
	}
	return "No summary available for this scenario.", nil
}

var cannedClassifications = map[string]models.Classification{
	"high_cpu": {
		Category:   models.CategoryCompute,
		Severity:   models.SeverityHigh,
		Confidence: 0.94,
		Reasoning:  "CPU usage at 94% on production web server with OOM killer activity indicates a compute resource issue.",
	},
	"database_connection": {
		Category:   models.CategoryDatabase,
		Severity:   models.SeverityCritical,
		Confidence: 0.96,
		Reasoning:  "Connection pool at 100% capacity with 'too many connections' errors across multiple services.",
	},
	"deployment_failure": {
		Category:   models.CategoryDeployment,
		Severity:   models.SeverityHigh,
		Confidence: 0.97,
		Reasoning:  "Partial rollout failure with health check failures on newly deployed instances.",
	},
	"network_latency": {
		Category:   models.CategoryNetwork,
		Severity:   models.SeverityHigh,
		Confidence: 0.92,
		Reasoning:  "Region-specific latency spike (3x normal) affecting EU users while US region remains normal.",
	},
}

var cannedDiagnoses = map[string]models.DiagnosticResult{
	"high_cpu": {
		RootCause:       "Memory leak in application v2.14.3 deployed 2 hours ago causing excessive garbage collection and CPU consumption.",
		EvidenceSummary: "Java process consuming 89.3% CPU on prod-web-03. GC pauses exceeding 5000ms. OOM killer invoked. CPU spike timing correlates with deployment of v2.14.3 (CHG0004567).",
		Confidence:      0.91,
		ContributingFactors: []string{
			"Deployment of v2.14.3 introduced memory leak",
			"No memory limit configured for JVM heap",
			"OOM killer creating cascading restarts",
		},
		AffectedComponents: []string{"prod-web-03", "web-app v2.14.3", "java process"},
	},
	"database_connection": {
		RootCause:       "Newly deployed inventory-service v1.0.0 is opening database connections without connection pooling, exhausting the pool on db-primary-01.",
		EvidenceSummary: "Connection count jumped from 45 to 200 (max) after inventory-service deployment. Multiple idle postgres connections attributed to inventory-service. Other services (order-service, checkout-service) failing to acquire connections.",
		Confidence:      0.93,
		ContributingFactors: []string{
			"inventory-service v1.0.0 deployed without connection pooling",
			"No per-service connection limit enforced at database level",
			"Multiple idle connections holding resources",
		},
		AffectedComponents: []string{"db-primary-01", "inventory-service", "order-service", "checkout-service"},
	},
	"deployment_failure": {
		RootCause:       "checkout-service v3.1.0 is missing the PAYMENT_GATEWAY_V2_URL environment variable, causing immediate startup failure on new instances.",
		EvidenceSummary: "3 of 8 instances running v3.1.0 crash on startup with 'Required environment variable PAYMENT_GATEWAY_V2_URL is not set'. The variable was added to staging (CHG0004695) but not propagated to production config.",
		Confidence:      0.97,
		ContributingFactors: []string{
			"Environment variable added to staging but not production",
			"No pre-deployment config validation step",
			"Rolling update continued despite first instance failure",
		},
		AffectedComponents: []string{"checkout-service", "checkout-pod-06", "checkout-pod-07", "checkout-pod-08"},
	},
	"network_latency": {
		RootCause:       "CDN routing rule change (CHG0004800) redirected EU traffic through US-East origin instead of EU-West, adding ~4500ms of cross-Atlantic latency.",
		EvidenceSummary: "EU latency jumped from 180ms to 4500ms at 10:30 UTC, exactly when CDN config change was applied. Logs show EU-West edge node routing to us-east-1-origin. US region unaffected. Cache miss rate at 95%.",
		Confidence:      0.95,
		ContributingFactors: []string{
			"CDN routing rule change for cost optimization",
			"EU origin override pointed to US-East",
			"No latency canary or automated rollback on CDN changes",
		},
		AffectedComponents: []string{"cdn-eu-west", "api-gateway-eu", "EU user traffic"},
	},
}

var cannedRecommendations = map[string]models.RecommendationSet{
	"high_cpu": {
		Summary:                 "Restart the affected service immediately, then plan a rollback of v2.14.3.",
		RequiresImmediateAction: true,
		Recommendations: []models.ActionRecommendation{
			{
				Description:      "Restart the java service on prod-web-03 to relieve immediate CPU pressure",
				RiskLevel:        models.RiskMedium,
				RequiresApproval: true,
				Integration:      "compute",
				Method:           "restart_service",
				Params:           map[string]any{"host": "prod-web-03", "service": "java"},
				Reasoning:        "Immediate relief while rollback is prepared. Service restart is lower risk than full rollback.",
			},
			{
				Description:      "Roll back deployment from v2.14.3 to v2.14.2",
				RiskLevel:        models.RiskHigh,
				RequiresApproval: true,
				Integration:      "compute",
				Method:           "restart_service",
				Params:           map[string]any{"host": "prod-web-03", "service": "java", "version": "2.14.2"},
				Reasoning:        "Permanent fix that removes the code with the memory leak.",
			},
			{
				Description:      "Notify the platform-alerts Slack channel about the incident",
				RiskLevel:        models.RiskLow,
				RequiresApproval: false,
				Integration:      "communication",
				Method:           "send_message",
				Params:           map[string]any{"channel": "platform-alerts", "message": "Investigating high CPU on prod-web-03. Service restart in progress."},
				Reasoning:        "Keep the team informed during incident response.",
			},
		},
	},
	"database_connection": {
		Summary:                 "Restart inventory-service with connection pooling enabled, and temporarily increase max_connections.",
		RequiresImmediateAction: true,
		Recommendations: []models.ActionRecommendation{
			{
				Description:      "Restart inventory-service with connection pooling configured (pool_size=10)",
				RiskLevel:        models.RiskMedium,
				RequiresApproval: true,
				Integration:      "compute",
				Method:           "restart_service",
				Params:           map[string]any{"host": "inventory-service", "service": "inventory-service"},
				Reasoning:        "Fixes the root cause: inventory-service will reuse connections instead of opening new ones.",
			},
			{
				Description:      "Temporarily increase database max_connections from 200 to 300",
				RiskLevel:        models.RiskMedium,
				RequiresApproval: true,
				Integration:      "compute",
				Method:           "restart_service",
				Params:           map[string]any{"host": "db-primary-01", "service": "postgresql"},
				Reasoning:        "Provides immediate headroom while inventory-service is being fixed.",
			},
			{
				Description:      "Notify database-alerts Slack channel",
				RiskLevel:        models.RiskLow,
				RequiresApproval: false,
				Integration:      "communication",
				Method:           "send_message",
				Params:           map[string]any{"channel": "database-alerts", "message": "DB connection exhaustion on db-primary-01, root cause identified as inventory-service. Fix in progress."},
				Reasoning:        "Keep the database team informed.",
			},
		},
	},
	"deployment_failure": {
		Summary:                 "Roll back checkout-service to v3.0.9, then add the missing environment variable to production config.",
		RequiresImmediateAction: true,
		Recommendations: []models.ActionRecommendation{
			{
				Description:      "Roll back checkout-service from v3.1.0 to v3.0.9",
				RiskLevel:        models.RiskHigh,
				RequiresApproval: true,
				Integration:      "compute",
				Method:           "restart_service",
				Params:           map[string]any{"host": "checkout-service", "service": "checkout-service", "version": "3.0.9"},
				Reasoning:        "Restores all 8 instances to the last known good version.",
			},
			{
				Description:      "Add PAYMENT_GATEWAY_V2_URL to production environment config",
				RiskLevel:        models.RiskLow,
				RequiresApproval: false,
				Reasoning:        "Required before re-attempting the v3.1.0 deployment.",
			},
			{
				Description:      "Notify deploy-notifications Slack channel",
				RiskLevel:        models.RiskLow,
				RequiresApproval: false,
				Integration:      "communication",
				Method:           "send_message",
				Params:           map[string]any{"channel": "deploy-notifications", "message": "Rolling back checkout-service v3.1.0 to v3.0.9 due to missing env var. Details in incident channel."},
				Reasoning:        "Keep the team informed of rollback status.",
			},
		},
	},
	"network_latency": {
		Summary:                 "Revert the CDN routing configuration change to restore EU traffic to EU-West origin.",
		RequiresImmediateAction: true,
		Recommendations: []models.ActionRecommendation{
			{
				Description:      "Revert CDN routing rule change (CHG0004800) to restore EU-West origin",
				RiskLevel:        models.RiskMedium,
				RequiresApproval: true,
				Integration:      "compute",
				Method:           "restart_service",
				Params:           map[string]any{"host": "cdn-eu-west", "service": "cdn"},
				Reasoning:        "Directly reverses the misconfiguration causing EU latency.",
			},
			{
				Description:      "Flush CDN cache for EU region to ensure fresh content from correct origin",
				RiskLevel:        models.RiskLow,
				RequiresApproval: false,
				Integration:      "compute",
				Method:           "restart_service",
				Params:           map[string]any{"host": "cdn-eu-west", "service": "varnish"},
				Reasoning:        "Cache may contain stale entries routed through US-East.",
			},
			{
				Description:      "Notify infra-alerts Slack channel",
				RiskLevel:        models.RiskLow,
				RequiresApproval: false,
				Integration:      "communication",
				Method:           "send_message",
				Params:           map[string]any{"channel": "infra-alerts", "message": "EU latency issue identified: CDN routing misconfiguration. Reverting CHG0004800."},
				Reasoning:        "Keep infrastructure team informed.",
			},
		},
	},
}

var cannedSummaries = map[string]string{
	"high_cpu": "At approximately 10:28 UTC on January 15, a high CPU alert was triggered on " +
		"prod-web-03 with CPU utilization reaching 94.2%. The monitoring system also " +
		"detected elevated memory usage at 87.5%.\n\n" +
		"Investigation revealed that the Java application process (PID 12345) was " +
		"consuming 89.3% of CPU. The OOM killer had been invoked, and GC pauses " +
		"exceeded 5000ms, indicating a severe memory leak. A review of recent changes " +
		"identified deployment CHG0004567 (application v2.14.3) completed at 08:45 UTC, " +
		"approximately 2 hours before the CPU spike began.\n\n" +
		"The root cause was determined to be a memory leak introduced in v2.14.3. " +
		"The recommended actions were to restart the affected service for immediate " +
		"relief and plan a rollback to v2.14.2 to permanently resolve the issue.",
	"database_connection": "At approximately 14:08 UTC on January 20, a critical alert fired indicating " +
		"that database connections on db-primary-01 had reached 100% capacity (200/200). " +
		"Multiple application services including order-service and checkout-service began " +
		"reporting 'too many connections' errors.\n\n" +
		"Investigation traced the connection exhaustion to the newly deployed " +
		"inventory-service v1.0.0 (CHG0004600, deployed at 13:00 UTC). The service was " +
		"opening direct database connections without connection pooling configured, " +
		"rapidly consuming available connections.\n\n" +
		"The recommended resolution was to restart inventory-service with connection " +
		"pooling enabled (pool_size=10) and temporarily increase max_connections to 300 " +
		"to provide headroom during the fix.",
	"deployment_failure": "At approximately 16:42 UTC on January 22, health check failures were detected " +
		"on checkout-service instances running the newly deployed v3.1.0. The rolling " +
		"update had progressed to 3 of 8 instances, all of which were crashing on startup.\n\n" +
		"Log analysis revealed that all three failing instances exited immediately with " +
		"'Required environment variable PAYMENT_GATEWAY_V2_URL is not set'. A review of " +
		"recent changes showed that CHG0004695 had added this variable to the staging " +
		"environment, but it was never propagated to the production configuration.\n\n" +
		"The recommended action was an immediate rollback to v3.0.9 to restore all " +
		"instances to a healthy state, followed by adding the missing environment variable " +
		"to production config before re-attempting the deployment.",
	"network_latency": "Starting at approximately 10:30 UTC on January 25, users in the EU region " +
		"began experiencing page load times of 4-5 seconds, roughly 3x the normal " +
		"latency of 180ms. The US region was completely unaffected.\n\n" +
		"Investigation revealed that CDN routing configuration change CHG0004800, " +
		"applied at 10:30 UTC for cost optimization, had overridden the EU-West origin " +
		"to point to us-east-1-origin.example.com. This forced all EU traffic to cross " +
		"the Atlantic to reach US-East servers. CDN cache miss rates spiked to 95%.\n\n" +
		"The recommended resolution was to immediately revert the CDN routing rule " +
		"to restore EU-West as the origin for EU traffic, and flush the CDN cache to " +
		"clear any stale entries.",
}

var defaultClassification = models.Classification{
	Category:   models.CategoryUnknown,
	Severity:   models.SeverityMedium,
	Confidence: 0.5,
	Reasoning:  "Unable to classify: scenario not recognized by mock engine.",
}

var defaultDiagnosis = models.DiagnosticResult{
	RootCause:       "Unknown: mock engine does not have canned data for this scenario.",
	EvidenceSummary: "No scenario-specific evidence available.",
	Confidence:      0.0,
}

var defaultRecommendations = models.RecommendationSet{
	Summary: "No specific recommendations: scenario not recognized by mock engine.",
}
