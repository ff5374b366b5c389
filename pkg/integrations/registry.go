package integrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oncallops/runbookd/pkg/config"
)

// Factory constructs one provider instance from settings.
type Factory func(settings *config.Settings) (any, error)

// Factories maps category -> mode -> constructor. The "mock" mode must be
// present for every category; live modes are optional.
type Factories map[string]map[string]Factory

// categoryModes lists, in priority order, the live mode keywords checked for
// per-integration overrides. Mirrors the Settings mode fields.
var categoryModes = map[string][]string{
	CategoryTicketing:     {"servicenow", "jira"},
	CategoryMonitoring:    {"datadog"},
	CategoryAlerting:      {"pagerduty"},
	CategoryCompute:       {"aws"},
	CategoryCommunication: {"slack"},
}

// Registry resolves and caches integration providers based on settings.
// Live-mode dispatch goes through a per-category circuit breaker; mock
// providers bypass it.
type Registry struct {
	mu       sync.Mutex
	settings *config.Settings
	fac      Factories
	cache    map[string]any
	modes    map[string]string
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewRegistry creates a registry over the given factories.
func NewRegistry(settings *config.Settings, factories Factories) *Registry {
	return &Registry{
		settings: settings,
		fac:      factories,
		cache:    make(map[string]any),
		modes:    make(map[string]string),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   slog.With("component", "integration_registry"),
	}
}

// resolveMode determines the effective mode for a category. Per-integration
// overrides (e.g. SERVICENOW_MODE=servicenow, or a global RUNBOOK_MODE=live)
// select the first live mode with a constructor; everything else is mock.
func (r *Registry) resolveMode(category string) string {
	for _, key := range categoryModes[category] {
		mode := r.settings.IntegrationMode(key)
		if mode != "" && mode != "mock" {
			return key
		}
	}
	return "mock"
}

// Provider returns the provider instance for a category, constructing and
// caching it on first use.
func (r *Registry) Provider(category string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[category]; ok {
		return cached, nil
	}

	constructors, ok := r.fac[category]
	if !ok {
		return nil, NewProviderNotFoundError(category, "")
	}

	mode := r.resolveMode(category)
	factory, ok := constructors[mode]
	if !ok {
		return nil, NewProviderNotFoundError(category, mode)
	}

	instance, err := factory(r.settings)
	if err != nil {
		return nil, fmt.Errorf("constructing %s provider (mode %s): %w", category, mode, err)
	}

	r.logger.Info("provider resolved", "category", category, "mode", mode)
	r.cache[category] = instance
	r.modes[category] = mode
	return instance, nil
}

// Mode returns the mode of the cached provider for a category, resolving it
// if nothing is cached yet.
func (r *Registry) Mode(category string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode, ok := r.modes[category]; ok {
		return mode
	}
	return r.resolveMode(category)
}

// Call resolves the category's provider and dispatches one method through
// the shared allow-list table. Live providers run inside the category's
// circuit breaker; an open breaker surfaces as an IntegrationError.
func (r *Registry) Call(ctx context.Context, category, method string, params map[string]any) (any, error) {
	provider, err := r.Provider(category)
	if err != nil {
		return nil, err
	}

	if r.Mode(category) == "mock" {
		return Invoke(ctx, category, method, provider, params)
	}

	result, err := r.breaker(category).Execute(func() (any, error) {
		return Invoke(ctx, category, method, provider, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, NewIntegrationError(category, "circuit breaker open", err)
	}
	return result, err
}

func (r *Registry) breaker(category string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[category]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    category,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				"category", name, "from", from.String(), "to", to.String())
		},
	})
	r.breakers[category] = cb
	return cb
}

// Reset clears the provider cache, forcing re-resolution on next access.
// Circuit breaker state is also discarded.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]any)
	r.modes = make(map[string]string)
	r.breakers = make(map[string]*gobreaker.CircuitBreaker)
}
