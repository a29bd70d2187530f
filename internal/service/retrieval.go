package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/logger"
	"github.com/driss-b/infercore/internal/repository"
)

// chunkNamespace seeds deterministic chunk point IDs so re-ingesting the
// same document overwrites its points instead of accumulating duplicates.
var chunkNamespace = uuid.MustParse("f3c1a6de-4b82-4c5f-9e07-2d58a1b6c934")

// EmbeddingProvider converts text into vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// VectorStore is the subset of the vector database the retrieval engine
// needs. *repository.QdrantRepository satisfies it.
type VectorStore interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	EnsureCollection(ctx context.Context, collection string) error
	Upsert(ctx context.Context, collection string, pointID string, vector []float32, payload *repository.ChunkPayload) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]repository.SearchResult, error)
	DeleteByDocument(ctx context.Context, collection string, documentID string) error
	Count(ctx context.Context, collection string) (uint64, error)
}

// DocumentRegistry records which documents have been ingested and with what
// content hash, so unchanged documents can be skipped.
// *repository.DocumentRepository satisfies it.
type DocumentRegistry interface {
	Get(ctx context.Context, collection, documentID string) (*domain.DocumentRecord, error)
	Save(ctx context.Context, rec *domain.DocumentRecord) error
}

// IngestResult reports what an ingestion call did.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Collection string `json:"collection"`
	ChunkCount int    `json:"chunk_count"`
	Skipped    bool   `json:"skipped"`
}

// RetrievalEngine ingests documents into per-tenant collections and answers
// similarity queries over them.
type RetrievalEngine struct {
	embedder EmbeddingProvider
	store    VectorStore
	registry DocumentRegistry
	chunker  *Chunker
	logger   *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRetrievalEngine(embedder EmbeddingProvider, store VectorStore, registry DocumentRegistry, chunker *Chunker, log *logger.Logger) *RetrievalEngine {
	return &RetrievalEngine{
		embedder: embedder,
		store:    store,
		registry: registry,
		chunker:  chunker,
		logger:   log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// documentLock serializes ingestions of the same document so the
// delete-then-insert sequence never interleaves between two writers.
func (e *RetrievalEngine) documentLock(collection, documentID string) *sync.Mutex {
	key := collection + "/" + documentID
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// ChunkID derives the stable point ID for a chunk of a document.
func ChunkID(collection, documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s/%s/%d", collection, documentID, index))).String()
}

// Ingest splits a document, embeds its chunks, and upserts them into the
// collection, creating the collection on first use. A document whose content
// hash matches the registry entry is skipped. Changed documents have their
// old points deleted before the new ones are written.
func (e *RetrievalEngine) Ingest(ctx context.Context, collection, documentID, text string, metadata map[string]string) (*IngestResult, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("%w: collection is required", domain.ErrValidation)
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document_id is required", domain.ErrValidation)
	}

	log := e.log(ctx).WithFields(logger.Fields{
		logger.FieldCollection: collection,
		logger.FieldDocumentID: documentID,
	})

	// The registry read, the delete of the previous version, and the new
	// upserts must not interleave between two writers of the same document.
	// Two concurrent first-time ingests would otherwise both see no registry
	// entry, both skip the delete, and the loser's extra chunks would survive.
	lock := e.documentLock(collection, documentID)
	lock.Lock()
	defer lock.Unlock()

	hash := HashText(text)
	existing, err := e.registry.Get(ctx, collection, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check document registry: %w", err)
	}
	if existing != nil && existing.ContentHash == hash {
		log.Debug("Document unchanged, skipping ingestion")
		return &IngestResult{
			DocumentID: documentID,
			Collection: collection,
			ChunkCount: existing.ChunkCount,
			Skipped:    true,
		}, nil
	}

	chunks := e.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document has no content", domain.ErrValidation)
	}

	vectors, err := e.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document chunks: %w", err)
	}

	if err := e.store.EnsureCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	// A shrinking document would otherwise leave stale trailing chunks
	// behind, so clear the previous version first.
	if existing != nil {
		if err := e.store.DeleteByDocument(ctx, collection, documentID); err != nil {
			return nil, fmt.Errorf("failed to delete previous document version: %w", err)
		}
	}

	for i, chunk := range chunks {
		payload := &repository.ChunkPayload{
			DocumentID: documentID,
			ChunkIndex: i,
			Text:       chunk,
			Metadata:   metadata,
		}
		if err := e.store.Upsert(ctx, collection, ChunkID(collection, documentID, i), vectors[i], payload); err != nil {
			return nil, fmt.Errorf("failed to upsert chunk %d: %w", i, err)
		}
	}

	if err := e.registry.Save(ctx, &domain.DocumentRecord{
		Collection:  collection,
		DocumentID:  documentID,
		ContentHash: hash,
		ChunkCount:  len(chunks),
		IngestedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("failed to record ingested document: %w", err)
	}

	log.WithField(logger.FieldCount, len(chunks)).Info("Document ingested")
	return &IngestResult{
		DocumentID: documentID,
		Collection: collection,
		ChunkCount: len(chunks),
	}, nil
}

// Query embeds the query text and returns the topK most similar chunks from
// the collection, ordered by score descending. Ties break toward the chunk
// that appears earlier in its document. Querying a collection that was never
// created returns domain.ErrCollectionNotFound.
func (e *RetrievalEngine) Query(ctx context.Context, collection, text string, topK int) ([]domain.DocumentChunk, error) {
	exists, err := e.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
	}

	vector, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Search(ctx, collection, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}

	chunks := make([]domain.DocumentChunk, 0, len(results))
	for _, res := range results {
		chunk := domain.DocumentChunk{
			ID:         res.ID,
			Collection: collection,
			Score:      res.Score,
		}
		if res.Payload != nil {
			chunk.DocumentID = res.Payload.DocumentID
			chunk.Index = res.Payload.ChunkIndex
			chunk.Text = res.Payload.Text
			chunk.Metadata = res.Payload.Metadata
		}
		chunks = append(chunks, chunk)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Index < chunks[j].Index
	})

	e.log(ctx).WithFields(logger.Fields{
		logger.FieldCollection: collection,
		logger.FieldCount:      len(chunks),
	}).Debug("Retrieval query completed")
	return chunks, nil
}

// CollectionSize returns the number of stored points in a collection.
func (e *RetrievalEngine) CollectionSize(ctx context.Context, collection string) (uint64, error) {
	exists, err := e.store.CollectionExists(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
	}
	return e.store.Count(ctx, collection)
}

func (e *RetrievalEngine) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return e.logger
}
