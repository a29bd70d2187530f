package api

import (
	"github.com/gin-gonic/gin"

	"github.com/driss-b/infercore/internal/api/handler"
	"github.com/driss-b/infercore/internal/api/middleware"
	"github.com/driss-b/infercore/internal/logger"
	"github.com/driss-b/infercore/internal/service"
)

// RouterConfig holds HTTP-surface configuration.
type RouterConfig struct {
	Mode string // debug, release, test
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(orchestrator *service.Orchestrator, log *logger.Logger, cfg RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(orchestrator)
	submitHandler := handler.NewSubmitHandler(orchestrator)
	jobHandler := handler.NewJobHandler(orchestrator)
	collectionHandler := handler.NewCollectionHandler(orchestrator)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Inference
		v1.POST("/submit", submitHandler.Submit)

		// Jobs
		v1.GET("/jobs/:id", jobHandler.Status)
		v1.DELETE("/jobs/:id", jobHandler.Cancel)

		// Collections
		v1.POST("/collections/:collection/documents", collectionHandler.Ingest)
		v1.POST("/query", collectionHandler.Query)
	}

	return r
}
