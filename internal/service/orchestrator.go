package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/logger"
	"github.com/driss-b/infercore/internal/prompts"
)

// OrchestratorConfig holds the façade-level knobs.
type OrchestratorConfig struct {
	// AsyncTokenMin is the max_tokens threshold above which a chat or rag
	// request is queued instead of executed inline.
	AsyncTokenMin int
}

// Health is the aggregate health report exposed by the API.
type Health struct {
	Targets map[domain.TargetName]TargetHealth `json:"targets"`
	Cache   CacheStats                         `json:"cache"`
	Queue   QueueStats                         `json:"queue"`
}

// Orchestrator is the single entry point of the pipeline. It validates the
// request, consults the cache, retrieves grounding context for RAG requests,
// dispatches through the router, and hands long-running work to the queue.
type Orchestrator struct {
	router    *Router
	retrieval *RetrievalEngine
	cache     *ResponseCache
	queue     *JobQueue
	embedder  EmbeddingProvider
	logger    *logger.Logger

	asyncTokenMin int
}

func NewOrchestrator(router *Router, retrieval *RetrievalEngine, cache *ResponseCache, queue *JobQueue, embedder EmbeddingProvider, log *logger.Logger, cfg *OrchestratorConfig) *Orchestrator {
	asyncMin := 0
	if cfg != nil {
		asyncMin = cfg.AsyncTokenMin
	}
	if asyncMin <= 0 {
		asyncMin = 2048
	}
	return &Orchestrator{
		router:        router,
		retrieval:     retrieval,
		cache:         cache,
		queue:         queue,
		embedder:      embedder,
		logger:        log,
		asyncTokenMin: asyncMin,
	}
}

// Submit runs a request through the pipeline. Synchronous modes return a
// completed response or a typed error; batch mode and oversized completions
// return a job handle immediately.
func (o *Orchestrator) Submit(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx = logger.SetRequestID(ctx, req.ID)

	switch req.Mode {
	case domain.ModeChat, domain.ModeRAG:
		// Estimated work is input plus requested output; past the threshold
		// the request runs as a job.
		if EstimateTokens(req.Text)+req.MaxTokens >= o.asyncTokenMin {
			return o.enqueue(ctx, domain.JobTypeLongCompletion, req)
		}
		return o.complete(ctx, req)
	case domain.ModeEmbed:
		return o.embed(ctx, req)
	case domain.ModeBatch:
		return o.enqueue(ctx, domain.JobTypeBatchEmbed, req)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, req.Mode)
	}
}

// complete executes the synchronous pipeline: retrieval (rag only), cache
// lookup, routed dispatch, cache write.
func (o *Orchestrator) complete(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	var (
		chunks      []domain.DocumentChunk
		contextHash string
		prompt      = req.Text
	)

	if req.Mode == domain.ModeRAG {
		retrieved, err := o.retrieval.Query(ctx, req.Collection, req.Text, req.TopK)
		if err != nil {
			return nil, err
		}
		chunks = retrieved
		contextHash = ContextHash(chunks)
		prompt = BuildRAGPrompt(req.Text, chunks)
	}

	target := o.router.Route(req)
	fp := Fingerprint(req, target, contextHash)

	start := time.Now()
	resp, cached, err := o.cache.GetOrFill(ctx, fp, func(ctx context.Context) (*domain.Response, error) {
		completion, served, err := o.router.Dispatch(ctx, req, prompt)
		if err != nil {
			return nil, err
		}
		return &domain.Response{
			Text:    completion.Text,
			Target:  string(served),
			Sources: chunks,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	// Responses are shared across requests via the cache; hand each caller
	// its own copy stamped with its request ID.
	out := *resp
	out.RequestID = req.ID
	out.Cached = cached

	o.log(ctx).WithFields(logger.Fields{
		logger.FieldTarget:     out.Target,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"cached":               cached,
	}).Info("Request completed")
	return &out, nil
}

// embed serves embed-mode requests inline. Single texts use Text; multi-text
// requests use Texts.
func (o *Orchestrator) embed(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	texts := req.Texts
	if len(texts) == 0 {
		texts = []string{req.Text}
	}
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return &domain.Response{
		RequestID:  req.ID,
		Embeddings: vectors,
	}, nil
}

// enqueue wraps the request as a job and returns its handle without waiting.
func (o *Orchestrator) enqueue(ctx context.Context, jobType domain.JobType, req *domain.Request) (*domain.Response, error) {
	job, err := o.queue.Enqueue(ctx, jobType, req.Priority, req)
	if err != nil {
		return nil, err
	}
	return &domain.Response{RequestID: req.ID, JobID: job.ID}, nil
}

// ExecuteJob is the JobExecutor the queue runs. Jobs replay the synchronous
// pipeline for the params they carry.
func (o *Orchestrator) ExecuteJob(ctx context.Context, job *domain.Job) (*domain.Response, error) {
	req := job.Params
	if req == nil {
		return nil, fmt.Errorf("%w: job has no parameters", domain.ErrValidation)
	}

	switch job.Type {
	case domain.JobTypeLongCompletion:
		return o.complete(ctx, req)
	case domain.JobTypeBatchEmbed:
		return o.embed(ctx, req)
	case domain.JobTypeIngest:
		result, err := o.retrieval.Ingest(ctx, req.Collection, req.DocumentID, req.Text, req.Metadata)
		if err != nil {
			return nil, err
		}
		return &domain.Response{
			RequestID: req.ID,
			Text:      fmt.Sprintf("ingested %d chunks", result.ChunkCount),
		}, nil
	default:
		return nil, fmt.Errorf("unknown job type %q", job.Type)
	}
}

// JobStatus looks up a job by ID.
func (o *Orchestrator) JobStatus(id string) (*domain.JobStatus, error) {
	return o.queue.Status(id)
}

// CancelJob cancels a queued job.
func (o *Orchestrator) CancelJob(ctx context.Context, id string) error {
	return o.queue.Cancel(ctx, id)
}

// Ingest adds a document to a collection synchronously.
func (o *Orchestrator) Ingest(ctx context.Context, collection, documentID, text string, metadata map[string]string) (*IngestResult, error) {
	return o.retrieval.Ingest(ctx, collection, documentID, text, metadata)
}

// IngestAsync queues the document as a batch-priority ingestion job and
// returns its handle. The document ID travels in the job params so re-running
// the job stays idempotent per document.
func (o *Orchestrator) IngestAsync(ctx context.Context, collection, documentID, text string, metadata map[string]string) (*domain.Response, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("%w: collection is required", domain.ErrValidation)
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}

	req := &domain.Request{
		Mode:       domain.ModeBatch,
		Collection: collection,
		DocumentID: documentID,
		Text:       text,
		Metadata:   metadata,
	}
	req.ApplyDefaults()
	ctx = logger.SetRequestID(ctx, req.ID)
	return o.enqueue(ctx, domain.JobTypeIngest, req)
}

// Query runs a raw retrieval query without generation.
func (o *Orchestrator) Query(ctx context.Context, collection, text string, topK int) ([]domain.DocumentChunk, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	return o.retrieval.Query(ctx, collection, text, topK)
}

// Health reports circuit states, cache effectiveness, and queue load.
func (o *Orchestrator) Health() *Health {
	return &Health{
		Targets: o.router.Health(),
		Cache:   o.cache.Stats(),
		Queue:   o.queue.Stats(),
	}
}

// BuildRAGPrompt assembles the grounded prompt: preamble, retrieved chunks in
// similarity order, then the question. Chunk order is whatever the retrieval
// engine returned, so identical retrievals produce identical prompts.
func BuildRAGPrompt(question string, chunks []domain.DocumentChunk) string {
	var b strings.Builder
	b.WriteString(prompts.RAGSystemPreamble)
	b.WriteString("\n\n")
	b.WriteString(prompts.RAGContextHeader)
	b.WriteString("\n\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, prompts.RAGDocumentFormat, i+1, chunk.Score, chunk.Text)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, prompts.RAGQuestionFormat, question)
	return b.String()
}

func (o *Orchestrator) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return o.logger
}
