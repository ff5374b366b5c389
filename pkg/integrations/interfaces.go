// Package integrations defines the capability contracts external systems
// must satisfy, the registry that resolves configured providers, and the
// method allow-list shared by runbook validation and dispatch.
package integrations

import (
	"context"

	"github.com/oncallops/runbookd/pkg/models"
)

// Integration category names.
const (
	CategoryTicketing     = "ticketing"
	CategoryMonitoring    = "monitoring"
	CategoryAlerting      = "alerting"
	CategoryCompute       = "compute"
	CategoryCommunication = "communication"
)

// TicketingProvider is the contract for incident/ticket management systems
// (ServiceNow, Jira).
type TicketingProvider interface {
	GetIncident(ctx context.Context, incidentID string) (*models.Ticket, error)
	CreateIncident(ctx context.Context, req models.CreateTicketRequest) (*models.Ticket, error)
	UpdateIncident(ctx context.Context, incidentID string, updates map[string]any) (*models.Ticket, error)
	GetRecentChanges(ctx context.Context, timeframe string) ([]models.ChangeRecord, error)
	AddWorkNote(ctx context.Context, incidentID, note string) error
	SearchKnowledgeBase(ctx context.Context, query string) ([]models.KBArticle, error)
}

// MonitoringProvider is the contract for monitoring/observability systems
// (Datadog, CloudWatch).
type MonitoringProvider interface {
	GetCurrentAlerts(ctx context.Context, filters map[string]any) ([]models.Alert, error)
	GetMetrics(ctx context.Context, query models.MetricQuery) (*models.MetricTimeSeries, error)
	GetLogs(ctx context.Context, query models.LogQuery) ([]models.LogEntry, error)
	GetHostInfo(ctx context.Context, hostname string) (*models.HostInfo, error)
	GetTopProcesses(ctx context.Context, hostname string, limit int) ([]models.ProcessInfo, error)
}

// AlertingProvider is the contract for alerting/on-call systems (PagerDuty).
type AlertingProvider interface {
	GetActiveIncidents(ctx context.Context) ([]models.PagerIncident, error)
	GetOnCall(ctx context.Context, schedule string) (*models.OnCallInfo, error)
	TriggerAlert(ctx context.Context, req models.AlertRequest) error
	AcknowledgeAlert(ctx context.Context, alertID string) error
}

// ComputeProvider is the contract for compute/infrastructure systems
// (AWS EC2, SSH).
type ComputeProvider interface {
	GetHostInfo(ctx context.Context, hostname string) (*models.HostInfo, error)
	GetTopProcesses(ctx context.Context, hostname string, limit int) ([]models.ProcessInfo, error)
	RestartService(ctx context.Context, hostname, service string) (map[string]any, error)
}

// CommunicationProvider is the contract for communication/notification
// systems (Slack).
type CommunicationProvider interface {
	SendMessage(ctx context.Context, channel, message string) error
	CreateChannel(ctx context.Context, name, purpose string) (*models.Channel, error)
	GetRecentMessages(ctx context.Context, channel string, limit int) ([]models.Message, error)
}
