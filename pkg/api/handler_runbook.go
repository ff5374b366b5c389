package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

type executeRunbookRequest struct {
	IncidentID string `json:"incident_id" binding:"required"`
	// Step IDs the operator pre-approved, letting gated steps run without
	// a pause.
	ApprovedSteps []string `json:"approved_steps"`
}

type resumeExecutionRequest struct {
	ApprovedSteps []string `json:"approved_steps"`
}

type runbookSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Trigger     string   `json:"trigger,omitempty"`
	Steps       []string `json:"steps"`
}

// handleListRunbooks returns the loaded runbook library.
func (s *Server) handleListRunbooks(c *gin.Context) {
	summaries := make([]runbookSummary, 0, len(s.runbooks))
	for _, rb := range s.runbooks {
		summaries = append(summaries, runbookSummary{
			Name:        rb.Name,
			Description: rb.Description,
			Trigger:     rb.Trigger,
			Steps:       rb.StepIDs(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	c.JSON(http.StatusOK, gin.H{"runbooks": summaries})
}

// handleExecuteRunbook starts a runbook against a stored incident.
func (s *Server) handleExecuteRunbook(c *gin.Context) {
	rb, ok := s.runbooks[c.Param("name")]
	if !ok {
		abortWithError(c, ErrNotFound)
		return
	}

	var req executeRunbookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "incident_id is required"})
		return
	}
	incident, err := s.store.Incident(req.IncidentID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	execution, err := s.executor.Execute(c.Request.Context(), rb, incident, approvedSet(req.ApprovedSteps))
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.store.SaveExecution(execution)
	c.JSON(http.StatusOK, execution)
}

func (s *Server) handleListExecutions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"executions": s.store.Executions()})
}

func (s *Server) handleGetExecution(c *gin.Context) {
	execution, err := s.store.Execution(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

// handleResumeExecution continues a paused execution with operator-approved
// step IDs.
func (s *Server) handleResumeExecution(c *gin.Context) {
	execution, err := s.store.Execution(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	rb, ok := s.runbooks[execution.RunbookName]
	if !ok {
		abortWithError(c, ErrNotFound)
		return
	}
	incident, err := s.store.Incident(execution.IncidentID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req resumeExecutionRequest
	_ = c.ShouldBindJSON(&req)

	resumed, err := s.executor.Resume(c.Request.Context(), rb, incident, execution, approvedSet(req.ApprovedSteps))
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.store.SaveExecution(resumed)
	c.JSON(http.StatusOK, resumed)
}

func approvedSet(stepIDs []string) map[string]bool {
	approved := make(map[string]bool, len(stepIDs))
	for _, id := range stepIDs {
		approved[id] = true
	}
	return approved
}
