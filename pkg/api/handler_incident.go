package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type createIncidentRequest struct {
	Description string `json:"description" binding:"required"`
}

type approveRequest struct {
	ApprovedBy string `json:"approved_by"`
}

type rejectRequest struct {
	RejectedBy string `json:"rejected_by"`
}

type verifyRequest struct {
	MaxAttempts     int     `json:"max_attempts"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// handleCreateIncident creates and classifies an incident synchronously.
func (s *Server) handleCreateIncident(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}

	incident, err := s.orch.CreateIncident(c.Request.Context(), req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.store.SaveIncident(incident)
	c.JSON(http.StatusCreated, incident)
}

// handleDiagnose runs the workflow through the recommendation stage
// synchronously and returns the incident awaiting approval.
func (s *Server) handleDiagnose(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}

	incident, err := s.orch.RunDiagnosis(c.Request.Context(), req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.store.SaveIncident(incident)
	c.JSON(http.StatusOK, incident)
}

func (s *Server) handleListIncidents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"incidents": s.store.Incidents()})
}

func (s *Server) handleGetIncident(c *gin.Context) {
	incident, err := s.store.Incident(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, incident)
}

func (s *Server) handlePendingApprovals(c *gin.Context) {
	incident, err := s.store.Incident(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": s.orch.PendingApprovals(incident)})
}

func (s *Server) handleApproveAction(c *gin.Context) {
	incident, err := s.store.Incident(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req approveRequest
	_ = c.ShouldBindJSON(&req)
	if req.ApprovedBy == "" {
		req.ApprovedBy = "operator"
	}

	action := s.orch.ApproveAction(incident, c.Param("action_id"), req.ApprovedBy)
	if action == nil {
		abortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, action)
}

func (s *Server) handleRejectAction(c *gin.Context) {
	incident, err := s.store.Incident(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req rejectRequest
	_ = c.ShouldBindJSON(&req)
	if req.RejectedBy == "" {
		req.RejectedBy = "operator"
	}

	action := s.orch.RejectAction(incident, c.Param("action_id"), req.RejectedBy)
	if action == nil {
		abortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, action)
}

// handleExecuteActions runs every approved, not-yet-executed action.
func (s *Server) handleExecuteActions(c *gin.Context) {
	incident, err := s.store.Incident(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	executed := s.orch.ExecuteApprovedActions(c.Request.Context(), incident)
	c.JSON(http.StatusOK, gin.H{"executed": executed, "incident": incident})
}

// handleVerify runs verification with optional retry settings.
func (s *Server) handleVerify(c *gin.Context) {
	incident, err := s.store.Incident(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	req := verifyRequest{MaxAttempts: 1}
	_ = c.ShouldBindJSON(&req)
	if req.MaxAttempts < 1 {
		req.MaxAttempts = 1
	}

	interval := time.Duration(req.IntervalSeconds * float64(time.Second))
	result, err := s.orch.VerifyWithRetry(c.Request.Context(), incident, req.MaxAttempts, interval)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSummarize(c *gin.Context) {
	incident, err := s.store.Incident(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	summary, err := s.orch.Summarize(c.Request.Context(), incident)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
