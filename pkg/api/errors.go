package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/integrations"
	"github.com/oncallops/runbookd/pkg/queue"
	"github.com/oncallops/runbookd/pkg/runbook"
)

// abortWithError maps domain errors to HTTP responses. Anything unmapped is
// logged and surfaced as a 500.
func abortWithError(c *gin.Context, err error) {
	var status int
	var message string

	var parseErr *runbook.ParseError
	var configErr *config.ConfigurationError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, queue.ErrJobNotFound):
		status, message = http.StatusNotFound, "resource not found"
	case errors.As(err, &parseErr):
		status, message = http.StatusBadRequest, parseErr.Error()
	case errors.As(err, &configErr):
		status, message = http.StatusBadRequest, configErr.Error()
	case errors.Is(err, integrations.ErrProviderNotFound):
		status, message = http.StatusBadGateway, err.Error()
	case errors.Is(err, integrations.ErrUnknownMethod):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, queue.ErrQueueFull):
		status, message = http.StatusServiceUnavailable, "workflow queue is full"
	case errors.Is(err, queue.ErrNotStarted):
		status, message = http.StatusServiceUnavailable, "workflow queue is not running"
	default:
		slog.Error("unexpected handler error", "error", err)
		status, message = http.StatusInternalServerError, "internal server error"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
