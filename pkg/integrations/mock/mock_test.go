package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

func scenarioSettings(scenario string) *config.Settings {
	s := config.Defaults()
	s.MockScenario = scenario
	s.MockDelayEnabled = false
	return &s
}

func TestAllScenarioFixturesLoad(t *testing.T) {
	for _, scenario := range config.AvailableScenarios() {
		t.Run(scenario, func(t *testing.T) {
			fixture, err := loadScenario(scenario)
			require.NoError(t, err)
			assert.NotEmpty(t, fixture.Datadog.Alerts, "every scenario has at least one alert")
			assert.NotEmpty(t, fixture.ServiceNow.RecentChanges)
			assert.NotEmpty(t, fixture.AWS.Instance.Hostname)
			assert.NotEmpty(t, fixture.PagerDuty.Incidents)
		})
	}
}

func TestUnknownScenarioServesEmptyData(t *testing.T) {
	provider := NewDatadog(scenarioSettings("no_such_scenario"))

	alerts, err := provider.GetCurrentAlerts(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDatadogAlertsHighCPU(t *testing.T) {
	provider := NewDatadog(scenarioSettings("high_cpu"))

	alerts, err := provider.GetCurrentAlerts(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "prod-web-03", alerts[0].Host)
	assert.True(t, alerts[0].Triggered())
}

func TestDatadogMetricsFallback(t *testing.T) {
	provider := NewDatadog(scenarioSettings("high_cpu"))

	// Unknown metric name falls back to the first available series.
	series, err := provider.GetMetrics(context.Background(), models.MetricQuery{
		MetricName: "system.load.1",
		Host:       "prod-web-03",
	})

	require.NoError(t, err)
	assert.Equal(t, "system.load.1", series.MetricName)
	assert.NotEmpty(t, series.Points)
}

func TestAWSTopProcessesLimit(t *testing.T) {
	provider := NewAWS(scenarioSettings("high_cpu"))

	processes, err := provider.GetTopProcesses(context.Background(), "prod-web-03", 2)

	require.NoError(t, err)
	require.Len(t, processes, 2)
	assert.Equal(t, "java", processes[0].Name)
}

func TestAWSEmptyHostnameServesScenarioInstance(t *testing.T) {
	provider := NewAWS(scenarioSettings("high_cpu"))

	info, err := provider.GetHostInfo(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "prod-web-03", info.Hostname)
	assert.Equal(t, "running", info.State)
}

func TestAWSRestartServiceRecordsState(t *testing.T) {
	provider := NewAWS(scenarioSettings("high_cpu"))

	result, err := provider.RestartService(context.Background(), "prod-web-03", "java")

	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "restart", result["action"])

	restarted := provider.RestartedServices()
	require.Len(t, restarted, 1)
	assert.Equal(t, "java", restarted[0]["service"])
}

func TestPagerDutyAcknowledgeReflectedInListing(t *testing.T) {
	provider := NewPagerDuty(scenarioSettings("database_connection"))
	ctx := context.Background()

	require.NoError(t, provider.AcknowledgeAlert(ctx, "PD-7010"))

	incidents, err := provider.GetActiveIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, incidents, 2)

	byID := map[string]models.PagerIncident{}
	for _, inc := range incidents {
		byID[inc.ID] = inc
	}
	assert.Equal(t, "acknowledged", byID["PD-7010"].Status)
	assert.Equal(t, "triggered", byID["PD-7011"].Status)
}

func TestServiceNowWorkNotesAccumulate(t *testing.T) {
	provider := NewServiceNow(scenarioSettings("high_cpu"))
	ctx := context.Background()

	require.NoError(t, provider.AddWorkNote(ctx, "INC0012345", "triage started"))
	require.NoError(t, provider.AddWorkNote(ctx, "INC0012345", "restart approved"))

	assert.Equal(t, []string{"triage started", "restart approved"}, provider.WorkNotes("INC0012345"))
}

func TestServiceNowUpdateIncidentAppliesOnTopOfFixture(t *testing.T) {
	provider := NewServiceNow(scenarioSettings("high_cpu"))

	ticket, err := provider.UpdateIncident(context.Background(), "INC0012345",
		map[string]any{"status": "in_progress", "assigned_to": "alice"})

	require.NoError(t, err)
	assert.Equal(t, "in_progress", ticket.Status)
	assert.Equal(t, "alice", ticket.AssignedTo)
	assert.Equal(t, "High CPU utilization on prod-web-03", ticket.ShortDescription)
}

func TestSlackSessionMessagesCombinedWithFixture(t *testing.T) {
	provider := NewSlack(scenarioSettings("high_cpu"))
	ctx := context.Background()

	require.NoError(t, provider.SendMessage(ctx, "platform-alerts", "restart in progress"))

	messages, err := provider.GetRecentMessages(ctx, "platform-alerts", 50)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "dana", messages[0].Author)
	assert.Equal(t, "runbook-bot", messages[1].Author)
	assert.Equal(t, "restart in progress", messages[1].Text)
}

func TestReloadScenarioSwitchesFixture(t *testing.T) {
	settings := scenarioSettings("high_cpu")
	provider := NewDatadog(settings)
	ctx := context.Background()

	alerts, err := provider.GetCurrentAlerts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "dd-alert-801", alerts[0].ID)

	settings.MockScenario = "network_latency"
	provider.ReloadScenario()

	alerts, err = provider.GetCurrentAlerts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "dd-alert-830", alerts[0].ID)
}
