package models

import "time"

// Payload records exchanged with integration providers. All are plain
// data-in/data-out values; providers never hand back framework callbacks.

// Alert is a monitoring alert (firing or cleared).
type Alert struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Host        string            `json:"host,omitempty"`
	Value       float64           `json:"value,omitempty"`
	Threshold   float64           `json:"threshold,omitempty"`
	Status      string            `json:"status"`
	Severity    Severity          `json:"severity"`
	TriggeredAt *time.Time        `json:"triggered_at,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Triggered reports whether the alert is still firing.
func (a Alert) Triggered() bool { return a.Status == "triggered" }

// MetricQuery selects a metric time series.
type MetricQuery struct {
	MetricName string            `json:"metric_name"`
	Host       string            `json:"host,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Start      *time.Time        `json:"start,omitempty"`
	End        *time.Time        `json:"end,omitempty"`
}

// MetricDataPoint is one sample in a time series.
type MetricDataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricTimeSeries is a named series of samples.
type MetricTimeSeries struct {
	MetricName string            `json:"metric_name"`
	Host       string            `json:"host,omitempty"`
	Points     []MetricDataPoint `json:"points,omitempty"`
	Unit       string            `json:"unit,omitempty"`
}

// LogQuery selects log entries.
type LogQuery struct {
	Query   string     `json:"query"`
	Host    string     `json:"host,omitempty"`
	Service string     `json:"service,omitempty"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	Limit   int        `json:"limit,omitempty"`
}

// LogEntry is a single log line with attributes.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Host       string         `json:"host,omitempty"`
	Service    string         `json:"service,omitempty"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HostInfo describes a compute instance.
type HostInfo struct {
	Hostname     string            `json:"hostname"`
	InstanceID   string            `json:"instance_id,omitempty"`
	InstanceType string            `json:"instance_type,omitempty"`
	State        string            `json:"state"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Region       string            `json:"region,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// ProcessInfo is one row of a top-processes snapshot.
type ProcessInfo struct {
	PID           int     `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	User          string  `json:"user,omitempty"`
	Command       string  `json:"command,omitempty"`
}

// ChangeRecord is a recent change from the ticketing system.
type ChangeRecord struct {
	ID          string     `json:"id"`
	Number      string     `json:"number"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// KBArticle is a knowledge-base search hit.
type KBArticle struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	Category       string  `json:"category,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// PagerIncident is an incident tracked by the alerting/on-call system.
type PagerIncident struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Urgency    string     `json:"urgency"`
	Service    string     `json:"service,omitempty"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// OnCallInfo identifies who is currently on call for a schedule.
type OnCallInfo struct {
	User            string     `json:"user"`
	Schedule        string     `json:"schedule"`
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	EscalationLevel int        `json:"escalation_level"`
}

// AlertRequest asks the alerting system to page.
type AlertRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	Service     string         `json:"service,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Channel is a communication channel (e.g. a Slack channel).
type Channel struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Purpose   string     `json:"purpose,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Message is a single chat message.
type Message struct {
	ID        string     `json:"id"`
	Channel   string     `json:"channel"`
	Text      string     `json:"text"`
	Author    string     `json:"author"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Ticket is an incident record in the ticketing system. Distinct from the
// in-memory Incident aggregate: tickets live in the external system.
type Ticket struct {
	ID               string            `json:"id"`
	Number           string            `json:"number,omitempty"`
	ShortDescription string            `json:"short_description"`
	Description      string            `json:"description,omitempty"`
	Status           string            `json:"status"`
	Severity         Severity          `json:"severity"`
	Category         ProblemCategory   `json:"category"`
	AssignedTo       string            `json:"assigned_to,omitempty"`
	CreatedAt        *time.Time        `json:"created_at,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// CreateTicketRequest contains fields for opening a ticket.
type CreateTicketRequest struct {
	ShortDescription string            `json:"short_description"`
	Description      string            `json:"description,omitempty"`
	Severity         Severity          `json:"severity"`
	Category         ProblemCategory   `json:"category"`
	AssignedTo       string            `json:"assigned_to,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}
