// Package api exposes the incident workflow over HTTP using gin.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/orchestrator"
	"github.com/oncallops/runbookd/pkg/queue"
	"github.com/oncallops/runbookd/pkg/runbook"
)

// Server wires the orchestrator, the runbook executor and the workflow
// queue behind HTTP handlers. All workflow state lives in the Store.
type Server struct {
	settings *config.Settings
	orch     *orchestrator.Orchestrator
	executor *runbook.Executor
	pool     *queue.WorkerPool
	store    *Store
	runbooks map[string]*runbook.Runbook
	logger   *slog.Logger
}

// NewServer creates a server. Runbooks are loaded once from the settings'
// runbook directory; files that fail validation were already skipped by the
// loader.
func NewServer(settings *config.Settings, orch *orchestrator.Orchestrator, executor *runbook.Executor, pool *queue.WorkerPool) (*Server, error) {
	loaded, err := runbook.LoadDirectory(settings.RunbookDir)
	if err != nil {
		return nil, err
	}
	runbooks := make(map[string]*runbook.Runbook, len(loaded))
	for _, rb := range loaded {
		runbooks[rb.Name] = rb
	}

	return &Server{
		settings: settings,
		orch:     orch,
		executor: executor,
		pool:     pool,
		store:    NewStore(),
		runbooks: runbooks,
		logger:   slog.With("component", "api"),
	}, nil
}

// Store exposes the server's workflow state, mainly for wiring and tests.
func (s *Server) Store() *Store { return s.store }

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	api.GET("/health", s.handleHealth)

	api.POST("/incidents", s.handleCreateIncident)
	api.POST("/incidents/diagnose", s.handleDiagnose)
	api.GET("/incidents", s.handleListIncidents)
	api.GET("/incidents/:id", s.handleGetIncident)
	api.GET("/incidents/:id/approvals", s.handlePendingApprovals)
	api.POST("/incidents/:id/actions/:action_id/approve", s.handleApproveAction)
	api.POST("/incidents/:id/actions/:action_id/reject", s.handleRejectAction)
	api.POST("/incidents/:id/execute", s.handleExecuteActions)
	api.POST("/incidents/:id/verify", s.handleVerify)
	api.POST("/incidents/:id/summarize", s.handleSummarize)

	api.POST("/workflows", s.handleEnqueueWorkflow)
	api.GET("/workflows", s.handleListWorkflows)
	api.GET("/workflows/:id", s.handleGetWorkflow)
	api.POST("/workflows/:id/cancel", s.handleCancelWorkflow)

	api.GET("/runbooks", s.handleListRunbooks)
	api.POST("/runbooks/:name/execute", s.handleExecuteRunbook)
	api.GET("/executions", s.handleListExecutions)
	api.GET("/executions/:id", s.handleGetExecution)
	api.POST("/executions/:id/resume", s.handleResumeExecution)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}

// handleHealth reports service and worker pool health.
func (s *Server) handleHealth(c *gin.Context) {
	health := s.pool.Health()
	status := http.StatusOK
	overall := "healthy"
	if !health.Started {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":   overall,
		"mode":     s.settings.RunbookMode,
		"pool":     health,
		"runbooks": len(s.runbooks),
	})
}
