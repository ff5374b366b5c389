package mock

import (
	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/integrations"
)

// ProviderFactories returns the constructor map covering every category in
// mock mode. Live constructors are layered on top by the caller.
func ProviderFactories() integrations.Factories {
	return integrations.Factories{
		integrations.CategoryTicketing: {
			"mock": func(s *config.Settings) (any, error) { return NewServiceNow(s), nil },
		},
		integrations.CategoryMonitoring: {
			"mock": func(s *config.Settings) (any, error) { return NewDatadog(s), nil },
		},
		integrations.CategoryAlerting: {
			"mock": func(s *config.Settings) (any, error) { return NewPagerDuty(s), nil },
		},
		integrations.CategoryCompute: {
			"mock": func(s *config.Settings) (any, error) { return NewAWS(s), nil },
		},
		integrations.CategoryCommunication: {
			"mock": func(s *config.Settings) (any, error) { return NewSlack(s), nil },
		},
	}
}
