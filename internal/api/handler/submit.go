package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/service"
)

// SubmitHandler handles inference submission endpoints.
type SubmitHandler struct {
	orchestrator *service.Orchestrator
}

// NewSubmitHandler creates a new submit handler.
// Parameters:
//   - orchestrator: pipeline entry point.
// Returns:
//   - *SubmitHandler: initialized handler.
func NewSubmitHandler(orchestrator *service.Orchestrator) *SubmitHandler {
	return &SubmitHandler{
		orchestrator: orchestrator,
	}
}

// Submit handles POST /api/v1/submit.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SubmitHandler) Submit(c *gin.Context) {
	var req domain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	resp, err := h.orchestrator.Submit(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	// Async submissions hand back a job handle; the work itself has only
	// been accepted, not performed.
	if resp.Async() {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
