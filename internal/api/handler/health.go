package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driss-b/infercore/internal/service"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	orchestrator *service.Orchestrator
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orchestrator *service.Orchestrator) *HealthHandler {
	return &HealthHandler{orchestrator: orchestrator}
}

// Health returns the health status of the service: per-target circuit
// states, cache effectiveness, and queue load.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"detail": h.orchestrator.Health(),
	})
}
