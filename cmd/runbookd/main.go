// runbookd server exposes the incident diagnostic workflow over HTTP,
// runs the workflow queue and hosts the runbook engine.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oncallops/runbookd/pkg/api"
	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/integrations"
	"github.com/oncallops/runbookd/pkg/integrations/live"
	"github.com/oncallops/runbookd/pkg/integrations/mock"
	"github.com/oncallops/runbookd/pkg/ml"
	"github.com/oncallops/runbookd/pkg/orchestrator"
	"github.com/oncallops/runbookd/pkg/queue"
	"github.com/oncallops/runbookd/pkg/runbook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// buildFactories layers live constructors over the mock set. Categories
// without a live implementation stay mock-only; the registry picks per
// category based on settings.
func buildFactories() integrations.Factories {
	factories := mock.ProviderFactories()
	factories[integrations.CategoryCommunication]["slack"] = func(settings *config.Settings) (any, error) {
		return live.NewSlack(settings)
	}
	return factories
}

// buildEngine selects the ML engine: Anthropic when running live with an
// anthropic provider configured, canned responses otherwise.
func buildEngine(settings *config.Settings) (ml.Engine, error) {
	if settings.RunbookMode == "live" && settings.MLEngineProvider == "anthropic" {
		return ml.NewAnthropicEngine(settings)
	}
	return ml.NewMockEngine(settings), nil
}

func main() {
	envPath := flag.String("env-file", getEnv("ENV_FILE", ".env"), "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	settings, err := config.FromEnv()
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting runbookd",
		"http_port", httpPort,
		"mode", settings.RunbookMode,
		"scenario", settings.MockScenario,
		"runbook_dir", settings.RunbookDir)

	ctx := context.Background()

	engine, err := buildEngine(settings)
	if err != nil {
		slog.Error("Failed to initialize ML engine", "error", err)
		os.Exit(1)
	}

	registry := integrations.NewRegistry(settings, buildFactories())
	orch := orchestrator.New(settings, registry, engine)
	executor := runbook.NewExecutor(registry, engine)

	workerPool := queue.NewWorkerPool(queue.DefaultConfig(), orch)
	workerPool.Start(ctx)

	server, err := api.NewServer(settings, orch, executor, workerPool)
	if err != nil {
		slog.Error("Failed to initialize API server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("runbookd started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Stop the pool first so running workflows finish before the API goes
	// away.
	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-time.After(2 * time.Minute):
		slog.Warn("Worker pool shutdown timeout exceeded")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
