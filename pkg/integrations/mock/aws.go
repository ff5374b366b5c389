package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// AWS implements the compute contract with scenario fixtures. Restarted
// services are remembered for the provider's lifetime.
type AWS struct {
	base

	mu        sync.Mutex
	restarted []map[string]any
}

// NewAWS creates a mock compute provider.
func NewAWS(settings *config.Settings) *AWS {
	return &AWS{base: newBase(settings, "aws")}
}

// ReloadScenario re-reads the active scenario fixture.
func (a *AWS) ReloadScenario() { a.reload() }

func (a *AWS) GetHostInfo(ctx context.Context, hostname string) (*models.HostInfo, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	// An empty hostname returns the scenario's representative instance.
	info := a.fixture.AWS.Instance
	if info.Hostname == "" {
		info.Hostname = hostname
	}
	if info.State == "" {
		info.State = "running"
	}
	return &info, nil
}

func (a *AWS) GetTopProcesses(ctx context.Context, hostname string, limit int) ([]models.ProcessInfo, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	processes := a.fixture.AWS.TopProcesses
	if limit > 0 && len(processes) > limit {
		processes = processes[:limit]
	}
	return processes, nil
}

func (a *AWS) RestartService(ctx context.Context, hostname, service string) (map[string]any, error) {
	if err := a.delay(ctx); err != nil {
		return nil, err
	}
	if hostname == "" {
		hostname = "unknown"
	}
	result := map[string]any{
		"hostname": hostname,
		"service":  service,
		"action":   "restart",
		"status":   "success",
		"message":  fmt.Sprintf("Service %q on %s restarted successfully (mock).", service, hostname),
	}
	a.mu.Lock()
	a.restarted = append(a.restarted, result)
	a.mu.Unlock()
	return result, nil
}

// RestartedServices returns the restarts recorded in this session.
func (a *AWS) RestartedServices() []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]any(nil), a.restarted...)
}
