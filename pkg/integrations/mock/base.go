// Package mock provides scenario-driven in-memory implementations of every
// integration contract. Fixture bundles are embedded; one bundle per named
// scenario, each provider reading its own section.
package mock

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

//go:embed fixtures/scenarios/*.json
var fixturesFS embed.FS

// Simulated per-provider API latency, applied when MOCK_DELAY_ENABLED.
var mockDelays = map[string]time.Duration{
	"servicenow": 500 * time.Millisecond,
	"datadog":    300 * time.Millisecond,
	"pagerduty":  200 * time.Millisecond,
	"aws":        400 * time.Millisecond,
	"slack":      100 * time.Millisecond,
}

const defaultDelay = 200 * time.Millisecond

// scenarioFixture is one embedded fixture bundle. Sections are keyed by
// provider.
type scenarioFixture struct {
	ServiceNow servicenowFixture `json:"servicenow"`
	Datadog    datadogFixture    `json:"datadog"`
	PagerDuty  pagerdutyFixture  `json:"pagerduty"`
	AWS        awsFixture        `json:"aws"`
	Slack      slackFixture      `json:"slack"`
}

type servicenowFixture struct {
	Incident      models.Ticket         `json:"incident"`
	RecentChanges []models.ChangeRecord `json:"recent_changes"`
	KnowledgeBase []models.KBArticle    `json:"knowledge_base"`
}

type datadogFixture struct {
	Alerts   []models.Alert                      `json:"alerts"`
	Metrics  map[string][]models.MetricDataPoint `json:"metrics"`
	Logs     []models.LogEntry                   `json:"logs"`
	HostInfo models.HostInfo                     `json:"host_info"`
}

type pagerdutyFixture struct {
	Incidents []models.PagerIncident `json:"incidents"`
	OnCall    models.OnCallInfo      `json:"on_call"`
}

type awsFixture struct {
	Instance     models.HostInfo      `json:"instance"`
	TopProcesses []models.ProcessInfo `json:"top_processes"`
}

type slackFixture struct {
	RecentMessages []models.Message `json:"recent_messages"`
}

func loadScenario(name string) (scenarioFixture, error) {
	var fixture scenarioFixture
	raw, err := fixturesFS.ReadFile(fmt.Sprintf("fixtures/scenarios/%s.json", name))
	if err != nil {
		return fixture, fmt.Errorf("scenario fixture %q: %w", name, err)
	}
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return fixture, fmt.Errorf("scenario fixture %q: %w", name, err)
	}
	return fixture, nil
}

// base handles fixture loading and optional artificial latency for every
// mock provider.
type base struct {
	settings *config.Settings
	key      string
	fixture  scenarioFixture
	logger   *slog.Logger
}

func newBase(settings *config.Settings, key string) base {
	b := base{
		settings: settings,
		key:      key,
		logger:   slog.With("component", "mock_"+key),
	}
	b.reload()
	return b
}

// reload re-reads the active scenario fixture. An unknown scenario leaves
// the provider with empty data, matching a quiet environment.
func (b *base) reload() {
	fixture, err := loadScenario(b.settings.MockScenario)
	if err != nil {
		b.logger.Warn("scenario fixture unavailable, serving empty data",
			"scenario", b.settings.MockScenario, "error", err)
		b.fixture = scenarioFixture{}
		return
	}
	b.fixture = fixture
}

// delay sleeps for the provider's simulated latency, honoring context
// cancellation.
func (b *base) delay(ctx context.Context) error {
	if !b.settings.MockDelayEnabled {
		return nil
	}
	d, ok := mockDelays[b.key]
	if !ok {
		d = defaultDelay
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
