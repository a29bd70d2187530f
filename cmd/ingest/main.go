package main

import (
	"context"
	"flag"
	"io"
	"os/signal"
	"syscall"

	"github.com/driss-b/infercore/internal/backend"
	"github.com/driss-b/infercore/internal/config"
	"github.com/driss-b/infercore/internal/logger"
	"github.com/driss-b/infercore/internal/repository"
	"github.com/driss-b/infercore/internal/service"
	"github.com/driss-b/infercore/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "infercore-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	collection := flag.String("collection", "", "Target collection (required)")
	dir := flag.String("dir", "", "Local directory of .txt/.md documents")
	s3Prefix := flag.String("s3-prefix", "", "Ingest from the configured S3 bucket under this prefix")
	useS3 := flag.Bool("s3", false, "Ingest from the configured S3 bucket")
	limit := flag.Int("limit", 0, "Maximum number of documents to ingest (0 = all)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *collection == "" {
		appLogger.Fatal("-collection is required")
	}
	if *dir == "" && !*useS3 && *s3Prefix == "" {
		appLogger.Fatal("one of -dir or -s3 is required")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldCollection: *collection,
		"dir":                  *dir,
		"s3":                   *useS3 || *s3Prefix != "",
		"limit":                *limit,
	}).Info("Starting ingestion")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
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

	// Initialize the retrieval engine
	embeddingClient := backend.NewEmbeddingClient(&backend.EmbeddingConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	chunker := service.NewChunker(service.ChunkerConfig{
		ChunkSize:    cfg.Retrieval.ChunkSize,
		OverlapRatio: cfg.Retrieval.OverlapRatio,
	})
	retrieval := service.NewRetrievalEngine(embeddingClient, qdrantRepo, documentRepo, chunker, appLogger)

	// Select the document source
	var source storage.DocumentSource
	if *dir != "" {
		source, err = storage.NewDirSource(*dir)
	} else {
		source, err = storage.NewS3Source(&storage.S3Config{
			Endpoint:  cfg.Documents.Endpoint,
			AccessKey: cfg.Documents.AccessKey,
			SecretKey: cfg.Documents.SecretKey,
			UseSSL:    cfg.Documents.UseSSL,
			Bucket:    cfg.Documents.Bucket,
			Region:    cfg.Documents.Region,
			Prefix:    *s3Prefix,
		})
	}
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize document source")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refs, err := source.List(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to list documents")
	}
	if *limit > 0 && len(refs) > *limit {
		refs = refs[:*limit]
	}

	var ingested, skipped, failed int
	for _, ref := range refs {
		if ctx.Err() != nil {
			appLogger.Warn("Interrupted, stopping ingestion")
			break
		}

		text, err := readDocument(ctx, source, ref)
		if err != nil {
			appLogger.WithError(err).WithField(logger.FieldDocumentID, ref.ID).Error("Failed to read document")
			failed++
			continue
		}

		result, err := retrieval.Ingest(ctx, *collection, ref.ID, text, map[string]string{"filename": ref.Name})
		if err != nil {
			appLogger.WithError(err).WithField(logger.FieldDocumentID, ref.ID).Error("Failed to ingest document")
			failed++
			continue
		}
		if result.Skipped {
			skipped++
		} else {
			ingested++
		}
	}

	appLogger.WithFields(logger.Fields{
		"total":    len(refs),
		"ingested": ingested,
		"skipped":  skipped,
		"failed":   failed,
	}).Info("Ingestion finished")
}

func readDocument(ctx context.Context, source storage.DocumentSource, ref storage.DocumentRef) (string, error) {
	rc, err := source.Open(ctx, ref)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
