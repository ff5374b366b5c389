package mock

import (
	"context"
	"sync"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// PagerDuty implements the alerting contract with scenario fixtures.
// Acknowledged alert IDs are remembered for the provider's lifetime and
// reflected in subsequent incident listings.
type PagerDuty struct {
	base

	mu           sync.Mutex
	acknowledged map[string]bool
}

// NewPagerDuty creates a mock alerting provider.
func NewPagerDuty(settings *config.Settings) *PagerDuty {
	return &PagerDuty{
		base:         newBase(settings, "pagerduty"),
		acknowledged: make(map[string]bool),
	}
}

// ReloadScenario re-reads the active scenario fixture.
func (p *PagerDuty) ReloadScenario() { p.reload() }

func (p *PagerDuty) GetActiveIncidents(ctx context.Context) ([]models.PagerIncident, error) {
	if err := p.delay(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	incidents := make([]models.PagerIncident, 0, len(p.fixture.PagerDuty.Incidents))
	for _, inc := range p.fixture.PagerDuty.Incidents {
		if p.acknowledged[inc.ID] {
			inc.Status = "acknowledged"
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

func (p *PagerDuty) GetOnCall(ctx context.Context, schedule string) (*models.OnCallInfo, error) {
	if err := p.delay(ctx); err != nil {
		return nil, err
	}
	info := p.fixture.PagerDuty.OnCall
	if info.Schedule == "" {
		info.Schedule = schedule
	}
	if info.User == "" {
		info.User = "Unknown"
	}
	if info.EscalationLevel == 0 {
		info.EscalationLevel = 1
	}
	return &info, nil
}

func (p *PagerDuty) TriggerAlert(ctx context.Context, req models.AlertRequest) error {
	// Triggering is a no-op in mock mode.
	return p.delay(ctx)
}

func (p *PagerDuty) AcknowledgeAlert(ctx context.Context, alertID string) error {
	if err := p.delay(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acknowledged[alertID] = true
	return nil
}
