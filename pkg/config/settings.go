package config

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
)

// Settings holds all runtime configuration, sourced from the environment.
// Defaults keep the whole system runnable in mock mode with zero env vars.
type Settings struct {
	// RunbookMode is the global provider mode, "mock" or "live".
	RunbookMode string
	// MockScenario selects the fixture bundle mock providers serve.
	MockScenario string
	// MockDelayEnabled turns on simulated per-provider latency in mock mode.
	MockDelayEnabled bool

	MLEngineProvider string
	AnthropicAPIKey  string
	MLModel          string

	// Per-integration mode overrides. Empty means "follow RunbookMode".
	ServiceNowMode string
	DatadogMode    string
	PagerDutyMode  string
	AWSMode        string
	JiraMode       string
	SlackMode      string

	ServiceNowInstance string
	ServiceNowUsername string
	ServiceNowPassword string

	DatadogAPIKey string
	DatadogAppKey string

	PagerDutyAPIKey string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string

	JiraURL      string
	JiraUsername string
	JiraAPIToken string

	SlackBotToken string

	RunbookDir string
}

// Defaults returns the baseline settings used when env vars are absent.
// MockDelayEnabled defaults through envBool instead: mergo fills zero
// values, which would clobber an explicit "false".
func Defaults() Settings {
	return Settings{
		RunbookMode:      "mock",
		MockScenario:     "high_cpu",
		MLEngineProvider: "anthropic",
		MLModel:          "claude-sonnet-4-5",
		AWSRegion:        "us-east-1",
		RunbookDir:       "./runbooks",
	}
}

// FromEnv builds Settings from the process environment, fills gaps from
// Defaults, and validates the result.
func FromEnv() (*Settings, error) {
	s := &Settings{
		RunbookMode:      os.Getenv("RUNBOOK_MODE"),
		MockScenario:     os.Getenv("MOCK_SCENARIO"),
		MockDelayEnabled: envBool("MOCK_DELAY_ENABLED", true),
		MLEngineProvider: os.Getenv("ML_ENGINE_PROVIDER"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		MLModel:          os.Getenv("ML_MODEL"),

		ServiceNowMode: os.Getenv("SERVICENOW_MODE"),
		DatadogMode:    os.Getenv("DATADOG_MODE"),
		PagerDutyMode:  os.Getenv("PAGERDUTY_MODE"),
		AWSMode:        os.Getenv("AWS_MODE"),
		JiraMode:       os.Getenv("JIRA_MODE"),
		SlackMode:      os.Getenv("SLACK_MODE"),

		ServiceNowInstance: os.Getenv("SERVICENOW_INSTANCE"),
		ServiceNowUsername: os.Getenv("SERVICENOW_USERNAME"),
		ServiceNowPassword: os.Getenv("SERVICENOW_PASSWORD"),

		DatadogAPIKey: os.Getenv("DATADOG_API_KEY"),
		DatadogAppKey: os.Getenv("DATADOG_APP_KEY"),

		PagerDutyAPIKey: os.Getenv("PAGERDUTY_API_KEY"),

		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          os.Getenv("AWS_REGION"),

		JiraURL:      os.Getenv("JIRA_URL"),
		JiraUsername: os.Getenv("JIRA_USERNAME"),
		JiraAPIToken: os.Getenv("JIRA_API_TOKEN"),

		SlackBotToken: os.Getenv("SLACK_BOT_TOKEN"),

		RunbookDir: os.Getenv("RUNBOOK_DIR"),
	}

	if err := mergo.Merge(s, Defaults()); err != nil {
		return nil, fmt.Errorf("merging default settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks invariants that would otherwise fail deep inside a
// workflow.
func (s *Settings) Validate() error {
	switch s.RunbookMode {
	case "mock", "live":
	default:
		return NewConfigurationError("RUNBOOK_MODE",
			fmt.Sprintf("must be \"mock\" or \"live\", got %q", s.RunbookMode))
	}
	if s.RunbookMode == "live" && s.MLEngineProvider == "anthropic" && s.AnthropicAPIKey == "" {
		return NewConfigurationError("ANTHROPIC_API_KEY",
			"required when RUNBOOK_MODE=live and ML_ENGINE_PROVIDER=anthropic")
	}
	return nil
}

// IntegrationMode resolves the effective mode for one integration category.
// A per-integration override of "live" wins; otherwise the global mode
// applies.
func (s *Settings) IntegrationMode(integration string) string {
	var override string
	switch integration {
	case "servicenow", "ticketing":
		override = s.ServiceNowMode
	case "datadog", "monitoring":
		override = s.DatadogMode
	case "pagerduty", "alerting":
		override = s.PagerDutyMode
	case "aws", "compute":
		override = s.AWSMode
	case "jira":
		override = s.JiraMode
	case "slack", "communication":
		override = s.SlackMode
	}
	if override != "" && override != "mock" {
		return override
	}
	if override == "mock" {
		return "mock"
	}
	return s.RunbookMode
}

// AvailableScenarios lists the mock fixture bundles that ship with the
// system.
func AvailableScenarios() []string {
	return []string{"high_cpu", "database_connection", "deployment_failure", "network_latency"}
}

func envBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
