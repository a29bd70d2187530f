package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driss-b/infercore/internal/service"
)

// CollectionHandler handles document ingestion and retrieval endpoints.
type CollectionHandler struct {
	orchestrator *service.Orchestrator
}

// NewCollectionHandler creates a new collection handler.
// Parameters:
//   - orchestrator: pipeline entry point.
// Returns:
//   - *CollectionHandler: initialized handler.
func NewCollectionHandler(orchestrator *service.Orchestrator) *CollectionHandler {
	return &CollectionHandler{
		orchestrator: orchestrator,
	}
}

// IngestRequest is the body of a document ingestion call. Async requests are
// queued as ingestion jobs and answered with a job handle.
type IngestRequest struct {
	DocumentID string            `json:"document_id" binding:"required"`
	Text       string            `json:"text" binding:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Async      bool              `json:"async,omitempty"`
}

// Ingest handles POST /api/v1/collections/:collection/documents.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CollectionHandler) Ingest(c *gin.Context) {
	collection := c.Param("collection")

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if req.Async {
		resp, err := h.orchestrator.IngestAsync(c.Request.Context(), collection, req.DocumentID, req.Text, req.Metadata)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
		return
	}

	result, err := h.orchestrator.Ingest(c.Request.Context(), collection, req.DocumentID, req.Text, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// QueryRequest is the body of a raw retrieval query.
type QueryRequest struct {
	Collection string `json:"collection" binding:"required"`
	Text       string `json:"text" binding:"required"`
	TopK       int    `json:"top_k,omitempty"`
}

// Query handles POST /api/v1/query.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CollectionHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	chunks, err := h.orchestrator.Query(c.Request.Context(), req.Collection, req.Text, req.TopK)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collection": req.Collection,
		"count":      len(chunks),
		"chunks":     chunks,
	})
}
