package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driss-b/infercore/internal/service"
)

// JobHandler handles job status and cancellation endpoints.
type JobHandler struct {
	orchestrator *service.Orchestrator
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - orchestrator: pipeline entry point.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(orchestrator *service.Orchestrator) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
	}
}

// Status handles GET /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Status(c *gin.Context) {
	id := c.Param("id")
	status, err := h.orchestrator.JobStatus(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Cancel handles DELETE /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.orchestrator.CancelJob(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "cancelled": true})
}
