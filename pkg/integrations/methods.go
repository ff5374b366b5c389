package integrations

import (
	"context"
	"fmt"
	"sort"

	"github.com/oncallops/runbookd/pkg/models"
)

// Invoker calls one provider method, extracting its arguments from a generic
// params map. The provider is type-asserted to the category's interface.
type Invoker func(ctx context.Context, provider any, params map[string]any) (any, error)

// methodTable is the single source of truth for which methods exist per
// category. Runbook validation checks names against it; the step executor
// dispatches through it.
var methodTable = map[string]map[string]Invoker{
	CategoryTicketing: {
		"get_incident": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asTicketing(provider)
			if err != nil {
				return nil, err
			}
			return p.GetIncident(ctx, stringParam(params, "incident_id"))
		},
		"create_incident": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asTicketing(provider)
			if err != nil {
				return nil, err
			}
			req := models.CreateTicketRequest{
				ShortDescription: stringParam(params, "short_description"),
				Description:      stringParam(params, "description"),
				Severity:         models.Severity(stringParam(params, "severity")),
				Category:         models.ProblemCategory(stringParam(params, "category")),
				AssignedTo:       stringParam(params, "assigned_to"),
			}
			return p.CreateIncident(ctx, req)
		},
		"update_incident": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asTicketing(provider)
			if err != nil {
				return nil, err
			}
			updates, _ := params["updates"].(map[string]any)
			return p.UpdateIncident(ctx, stringParam(params, "incident_id"), updates)
		},
		"get_recent_changes": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asTicketing(provider)
			if err != nil {
				return nil, err
			}
			return p.GetRecentChanges(ctx, stringParam(params, "timeframe"))
		},
		"add_work_note": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asTicketing(provider)
			if err != nil {
				return nil, err
			}
			return nil, p.AddWorkNote(ctx, stringParam(params, "incident_id"), stringParam(params, "note"))
		},
		"search_knowledge_base": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asTicketing(provider)
			if err != nil {
				return nil, err
			}
			return p.SearchKnowledgeBase(ctx, stringParam(params, "query"))
		},
	},
	CategoryMonitoring: {
		"get_current_alerts": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asMonitoring(provider)
			if err != nil {
				return nil, err
			}
			filters, _ := params["filters"].(map[string]any)
			return p.GetCurrentAlerts(ctx, filters)
		},
		"get_metrics": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asMonitoring(provider)
			if err != nil {
				return nil, err
			}
			query := models.MetricQuery{
				MetricName: stringParam(params, "metric_name"),
				Host:       stringParam(params, "host", "hostname"),
			}
			return p.GetMetrics(ctx, query)
		},
		"get_logs": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asMonitoring(provider)
			if err != nil {
				return nil, err
			}
			query := models.LogQuery{
				Query:   stringParam(params, "query"),
				Host:    stringParam(params, "host", "hostname"),
				Service: stringParam(params, "service"),
				Limit:   intParam(params, "limit", 0),
			}
			return p.GetLogs(ctx, query)
		},
		"get_host_info": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asMonitoring(provider)
			if err != nil {
				return nil, err
			}
			return p.GetHostInfo(ctx, stringParam(params, "hostname", "host"))
		},
		"get_top_processes": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asMonitoring(provider)
			if err != nil {
				return nil, err
			}
			return p.GetTopProcesses(ctx, stringParam(params, "hostname", "host"), intParam(params, "limit", 10))
		},
	},
	CategoryAlerting: {
		"get_active_incidents": func(ctx context.Context, provider any, _ map[string]any) (any, error) {
			p, err := asAlerting(provider)
			if err != nil {
				return nil, err
			}
			return p.GetActiveIncidents(ctx)
		},
		"get_on_call": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asAlerting(provider)
			if err != nil {
				return nil, err
			}
			return p.GetOnCall(ctx, stringParam(params, "schedule"))
		},
		"trigger_alert": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asAlerting(provider)
			if err != nil {
				return nil, err
			}
			req := models.AlertRequest{
				Title:       stringParam(params, "title"),
				Description: stringParam(params, "description"),
				Severity:    models.Severity(stringParam(params, "severity")),
				Service:     stringParam(params, "service"),
			}
			return nil, p.TriggerAlert(ctx, req)
		},
		"acknowledge_alert": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asAlerting(provider)
			if err != nil {
				return nil, err
			}
			return nil, p.AcknowledgeAlert(ctx, stringParam(params, "alert_id"))
		},
	},
	CategoryCompute: {
		"get_host_info": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asCompute(provider)
			if err != nil {
				return nil, err
			}
			return p.GetHostInfo(ctx, stringParam(params, "hostname", "host"))
		},
		"get_top_processes": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asCompute(provider)
			if err != nil {
				return nil, err
			}
			return p.GetTopProcesses(ctx, stringParam(params, "hostname", "host"), intParam(params, "limit", 10))
		},
		"restart_service": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asCompute(provider)
			if err != nil {
				return nil, err
			}
			return p.RestartService(ctx, stringParam(params, "hostname", "host"), stringParam(params, "service"))
		},
	},
	CategoryCommunication: {
		"send_message": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asCommunication(provider)
			if err != nil {
				return nil, err
			}
			return nil, p.SendMessage(ctx, stringParam(params, "channel"), stringParam(params, "message"))
		},
		"create_channel": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asCommunication(provider)
			if err != nil {
				return nil, err
			}
			return p.CreateChannel(ctx, stringParam(params, "name"), stringParam(params, "purpose"))
		},
		"get_recent_messages": func(ctx context.Context, provider any, params map[string]any) (any, error) {
			p, err := asCommunication(provider)
			if err != nil {
				return nil, err
			}
			return p.GetRecentMessages(ctx, stringParam(params, "channel"), intParam(params, "limit", 50))
		},
	},
}

// ValidIntegrations returns the known category names, sorted.
func ValidIntegrations() []string {
	names := make([]string, 0, len(methodTable))
	for name := range methodTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidIntegration reports whether a category name is known.
func IsValidIntegration(category string) bool {
	_, ok := methodTable[category]
	return ok
}

// ValidMethods returns the method names allowed for a category, sorted.
func ValidMethods(category string) []string {
	methods, ok := methodTable[category]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsValidMethod reports whether a method name is allowed for a category.
func IsValidMethod(category, method string) bool {
	methods, ok := methodTable[category]
	if !ok {
		return false
	}
	_, ok = methods[method]
	return ok
}

// Invoke dispatches one provider method by name. Methods with no return
// payload yield a nil result.
func Invoke(ctx context.Context, category, method string, provider any, params map[string]any) (any, error) {
	methods, ok := methodTable[category]
	if !ok {
		return nil, NewProviderNotFoundError(category, "")
	}
	invoker, ok := methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q for category %q", ErrUnknownMethod, method, category)
	}
	return invoker(ctx, provider, params)
}

func asTicketing(provider any) (TicketingProvider, error) {
	p, ok := provider.(TicketingProvider)
	if !ok {
		return nil, NewIntegrationError(CategoryTicketing, "provider does not implement ticketing contract", nil)
	}
	return p, nil
}

func asMonitoring(provider any) (MonitoringProvider, error) {
	p, ok := provider.(MonitoringProvider)
	if !ok {
		return nil, NewIntegrationError(CategoryMonitoring, "provider does not implement monitoring contract", nil)
	}
	return p, nil
}

func asAlerting(provider any) (AlertingProvider, error) {
	p, ok := provider.(AlertingProvider)
	if !ok {
		return nil, NewIntegrationError(CategoryAlerting, "provider does not implement alerting contract", nil)
	}
	return p, nil
}

func asCompute(provider any) (ComputeProvider, error) {
	p, ok := provider.(ComputeProvider)
	if !ok {
		return nil, NewIntegrationError(CategoryCompute, "provider does not implement compute contract", nil)
	}
	return p, nil
}

func asCommunication(provider any) (CommunicationProvider, error) {
	p, ok := provider.(CommunicationProvider)
	if !ok {
		return nil, NewIntegrationError(CategoryCommunication, "provider does not implement communication contract", nil)
	}
	return p, nil
}

// stringParam returns the first non-empty string among the given keys.
// Non-string values render through fmt.
func stringParam(params map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if s != "" {
				return s
			}
			continue
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// intParam reads an integer parameter, tolerating the numeric types YAML
// and JSON decoding produce.
func intParam(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}
