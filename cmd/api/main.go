package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driss-b/infercore/internal/api"
	"github.com/driss-b/infercore/internal/api/middleware"
	"github.com/driss-b/infercore/internal/backend"
	"github.com/driss-b/infercore/internal/config"
	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/logger"
	"github.com/driss-b/infercore/internal/repository"
	"github.com/driss-b/infercore/internal/service"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	// Initialize backend clients
	embeddingClient := backend.NewEmbeddingClient(&backend.EmbeddingConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	generationClient := backend.NewGenerationClient()

	// Initialize services
	router := service.NewRouter(modelTargets(cfg), generationClient, nil, appLogger, &service.RouterConfig{
		ScoreThreshold:   cfg.Router.ScoreThreshold,
		FailureThreshold: cfg.Router.FailureThreshold,
		CooldownPeriod:   cfg.Router.CooldownPeriod,
	})

	chunker := service.NewChunker(service.ChunkerConfig{
		ChunkSize:    cfg.Retrieval.ChunkSize,
		OverlapRatio: cfg.Retrieval.OverlapRatio,
	})
	retrieval := service.NewRetrievalEngine(embeddingClient, qdrantRepo, documentRepo, chunker, appLogger)

	cache := service.NewResponseCache(service.CacheConfig{
		Size:    cfg.Cache.Size,
		TTL:     cfg.Cache.TTL,
		MaxWait: cfg.Cache.MaxWait,
	})

	// The queue needs the orchestrator's pipeline as its executor, so wire
	// the two in stages.
	var orchestrator *service.Orchestrator
	queue := service.NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		return orchestrator.ExecuteJob(ctx, job)
	}, jobRepo, appLogger, &service.QueueConfig{
		Workers:  cfg.Queue.Workers,
		MaxDepth: cfg.Queue.MaxDepth,
	})
	orchestrator = service.NewOrchestrator(router, retrieval, cache, queue, embeddingClient, appLogger, &service.OrchestratorConfig{
		AsyncTokenMin: cfg.Queue.AsyncTokenMin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx, cfg.Queue.Workers)

	// Setup router
	engine := api.SetupRouter(orchestrator, appLogger, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	// Drain in-flight jobs before exit
	queue.Stop()

	appLogger.Info("Server exited")
}

// modelTargets builds the immutable target set from configuration.
func modelTargets(cfg *config.Config) []*domain.ModelTarget {
	build := func(name domain.TargetName, tc config.TargetConfig) *domain.ModelTarget {
		return &domain.ModelTarget{
			Name:       name,
			Endpoint:   tc.Endpoint,
			Model:      tc.Model,
			APIKey:     tc.APIKey,
			Timeout:    tc.Timeout,
			MaxContext: tc.MaxContext,
		}
	}
	return []*domain.ModelTarget{
		build(domain.TargetSmallLocal, cfg.Models.SmallLocal),
		build(domain.TargetLargeLocal, cfg.Models.LargeLocal),
		build(domain.TargetCloudFallback, cfg.Models.CloudFallback),
	}
}
