package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleEnqueueWorkflow queues a full end-to-end workflow and returns the
// job immediately.
func (s *Server) handleEnqueueWorkflow(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}

	job, err := s.pool.Enqueue(req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.pool.Jobs()})
}

func (s *Server) handleGetWorkflow(c *gin.Context) {
	job, err := s.pool.Job(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleCancelWorkflow(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := s.pool.Job(jobID); err != nil {
		abortWithError(c, err)
		return
	}
	cancelled := s.pool.Cancel(jobID)
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}
