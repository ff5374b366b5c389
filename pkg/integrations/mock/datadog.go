package mock

import (
	"context"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// Datadog implements the monitoring contract with scenario fixtures.
type Datadog struct {
	base
}

// NewDatadog creates a mock monitoring provider.
func NewDatadog(settings *config.Settings) *Datadog {
	return &Datadog{base: newBase(settings, "datadog")}
}

// ReloadScenario re-reads the active scenario fixture.
func (d *Datadog) ReloadScenario() { d.reload() }

func (d *Datadog) GetCurrentAlerts(ctx context.Context, filters map[string]any) ([]models.Alert, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return d.fixture.Datadog.Alerts, nil
}

func (d *Datadog) GetMetrics(ctx context.Context, query models.MetricQuery) (*models.MetricTimeSeries, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	metrics := d.fixture.Datadog.Metrics

	// Exact metric name first, then any available series.
	points := metrics[query.MetricName]
	if len(points) == 0 {
		for _, series := range metrics {
			points = series
			break
		}
	}
	return &models.MetricTimeSeries{
		MetricName: query.MetricName,
		Host:       query.Host,
		Points:     points,
	}, nil
}

func (d *Datadog) GetLogs(ctx context.Context, query models.LogQuery) ([]models.LogEntry, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	logs := d.fixture.Datadog.Logs
	if query.Limit > 0 && len(logs) > query.Limit {
		logs = logs[:query.Limit]
	}
	return logs, nil
}

func (d *Datadog) GetHostInfo(ctx context.Context, hostname string) (*models.HostInfo, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	info := d.fixture.Datadog.HostInfo
	if info.Hostname == "" {
		info.Hostname = hostname
	}
	if info.State == "" {
		info.State = "running"
	}
	return &info, nil
}

func (d *Datadog) GetTopProcesses(ctx context.Context, hostname string, limit int) ([]models.ProcessInfo, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	// Process data comes from the compute provider; monitoring has none.
	return nil, nil
}
