package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/prompts"
)

type testPipeline struct {
	orchestrator *Orchestrator
	gen          *fakeGen
	store        *fakeVectorStore
	queue        *JobQueue
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	gen := &fakeGen{}
	router := newTestRouter(gen)
	store := newFakeVectorStore()
	engine, embedder, _ := newTestEngine(store)
	cache := NewResponseCache(CacheConfig{Size: 100, TTL: time.Minute, MaxWait: time.Second})

	var orchestrator *Orchestrator
	queue := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		return orchestrator.ExecuteJob(ctx, job)
	}, nil, testLogger(), &QueueConfig{MaxDepth: 16})
	orchestrator = NewOrchestrator(router, engine, cache, queue, embedder, testLogger(), &OrchestratorConfig{
		AsyncTokenMin: 2048,
	})

	queue.Start(context.Background(), 2)
	t.Cleanup(queue.Stop)

	return &testPipeline{orchestrator: orchestrator, gen: gen, store: store, queue: queue}
}

func (p *testPipeline) pollJob(t *testing.T, id string) *domain.JobStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := p.orchestrator.JobStatus(id)
		require.NoError(t, err)
		if status.State.Terminal() {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return nil
}

func TestOrchestrator_ChatRoutesBySimplicity(t *testing.T) {
	p := newTestPipeline(t)

	resp, err := p.orchestrator.Submit(context.Background(), &domain.Request{Text: "hi", Mode: domain.ModeChat})
	require.NoError(t, err)
	assert.Equal(t, string(domain.TargetSmallLocal), resp.Target)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.RequestID)

	resp, err = p.orchestrator.Submit(context.Background(), &domain.Request{
		Text: "analyze this contract and explain the termination clause",
		Mode: domain.ModeChat,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.TargetLargeLocal), resp.Target)
}

func TestOrchestrator_RepeatedRequestServedFromCache(t *testing.T) {
	p := newTestPipeline(t)
	req := func() *domain.Request {
		return &domain.Request{Text: "hi there", Mode: domain.ModeChat}
	}

	first, err := p.orchestrator.Submit(context.Background(), req())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := p.orchestrator.Submit(context.Background(), req())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.NotEqual(t, first.RequestID, second.RequestID, "each caller keeps its own request ID")

	p.gen.mu.Lock()
	defer p.gen.mu.Unlock()
	assert.Len(t, p.gen.calls, 1, "second request must not reach the backend")
}

func TestOrchestrator_RAGGroundsThePrompt(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.orchestrator.Ingest(context.Background(), "tenant-a", "doc-1",
		"the warranty period is twelve months", nil)
	require.NoError(t, err)

	resp, err := p.orchestrator.Submit(context.Background(), &domain.Request{
		Text:       "what is the warranty period?",
		Mode:       domain.ModeRAG,
		Collection: "tenant-a",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Sources)

	p.gen.mu.Lock()
	prompt := p.gen.prompts[len(p.gen.prompts)-1]
	p.gen.mu.Unlock()
	assert.Contains(t, prompt, prompts.RAGContextHeader)
	assert.Contains(t, prompt, "Document 1 (relevance:")
	assert.Contains(t, prompt, "the warranty period")
	assert.Contains(t, prompt, "twelve months")
	assert.Contains(t, prompt, "what is the warranty period?")
}

func TestOrchestrator_RAGUnknownCollection(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.orchestrator.Submit(context.Background(), &domain.Request{
		Text:       "anything",
		Mode:       domain.ModeRAG,
		Collection: "never-created",
	})
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestOrchestrator_ValidationRejectedAtIngress(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.orchestrator.Submit(context.Background(), &domain.Request{Mode: domain.ModeChat})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = p.orchestrator.Submit(context.Background(), &domain.Request{Text: "hello", Mode: "stream"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = p.orchestrator.Submit(context.Background(), &domain.Request{Text: "hello", Mode: domain.ModeRAG})
	require.ErrorIs(t, err, domain.ErrValidation, "rag without a collection is malformed")

	p.gen.mu.Lock()
	defer p.gen.mu.Unlock()
	assert.Empty(t, p.gen.calls, "rejected requests never enter the pipeline")
}

func TestOrchestrator_EmbedModeInline(t *testing.T) {
	p := newTestPipeline(t)

	resp, err := p.orchestrator.Submit(context.Background(), &domain.Request{
		Text: "embed me",
		Mode: domain.ModeEmbed,
	})
	require.NoError(t, err)
	assert.False(t, resp.Async())
	require.Len(t, resp.Embeddings, 1)
	assert.Len(t, resp.Embeddings[0], 4)
}

func TestOrchestrator_BatchModeRunsAsJob(t *testing.T) {
	p := newTestPipeline(t)

	texts := []string{"first", "second", "third"}
	resp, err := p.orchestrator.Submit(context.Background(), &domain.Request{
		Mode:  domain.ModeBatch,
		Texts: texts,
	})
	require.NoError(t, err)
	require.True(t, resp.Async())

	// Status is available immediately, before the job finishes.
	status, err := p.orchestrator.JobStatus(resp.JobID)
	require.NoError(t, err)
	assert.Contains(t, []domain.JobState{domain.JobStateQueued, domain.JobStateRunning, domain.JobStateCompleted}, status.State)

	final := p.pollJob(t, resp.JobID)
	require.Equal(t, domain.JobStateCompleted, final.State)
	require.NotNil(t, final.Result)
	assert.Len(t, final.Result.Embeddings, len(texts))
}

func TestOrchestrator_AsyncIngestRunsAsJob(t *testing.T) {
	p := newTestPipeline(t)

	resp, err := p.orchestrator.IngestAsync(context.Background(), "tenant-a", "doc-1",
		"the warranty period is twelve months", map[string]string{"lang": "en"})
	require.NoError(t, err)
	require.True(t, resp.Async())

	final := p.pollJob(t, resp.JobID)
	require.Equal(t, domain.JobStateCompleted, final.State)

	// The job carries the caller's document ID, so the ingested chunks land
	// under their deterministic point IDs and the next identical ingest is a
	// registry no-op.
	p.store.mu.Lock()
	_, ok := p.store.collections["tenant-a"][ChunkID("tenant-a", "doc-1", 0)]
	p.store.mu.Unlock()
	assert.True(t, ok, "chunk stored under the document's deterministic ID")

	result, err := p.orchestrator.Ingest(context.Background(), "tenant-a", "doc-1",
		"the warranty period is twelve months", nil)
	require.NoError(t, err)
	assert.True(t, result.Skipped, "unchanged document re-ingest is idempotent")

	chunks, err := p.orchestrator.Query(context.Background(), "tenant-a", "what is the warranty period?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
}

func TestOrchestrator_AsyncIngestValidation(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.orchestrator.IngestAsync(context.Background(), "", "doc-1", "text", nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = p.orchestrator.IngestAsync(context.Background(), "tenant-a", "", "text", nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = p.orchestrator.IngestAsync(context.Background(), "tenant-a", "doc-1", "   ", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestOrchestrator_OversizedCompletionGoesAsync(t *testing.T) {
	p := newTestPipeline(t)

	resp, err := p.orchestrator.Submit(context.Background(), &domain.Request{
		Text:      "write an exhaustive report on the migration",
		Mode:      domain.ModeChat,
		MaxTokens: 4096,
	})
	require.NoError(t, err)
	require.True(t, resp.Async(), "max_tokens beyond the sync threshold must queue")

	final := p.pollJob(t, resp.JobID)
	require.Equal(t, domain.JobStateCompleted, final.State)
	require.NotNil(t, final.Result)
	assert.NotEmpty(t, final.Result.Text)
}

func TestOrchestrator_BackpressureSurfacesQueueFull(t *testing.T) {
	gen := &fakeGen{}
	router := newTestRouter(gen)
	store := newFakeVectorStore()
	engine, embedder, _ := newTestEngine(store)
	cache := NewResponseCache(CacheConfig{Size: 10, TTL: time.Minute, MaxWait: time.Second})

	// Workers never started: the single queue slot fills and stays full.
	var orchestrator *Orchestrator
	queue := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		return orchestrator.ExecuteJob(ctx, job)
	}, nil, testLogger(), &QueueConfig{MaxDepth: 1})
	orchestrator = NewOrchestrator(router, engine, cache, queue, embedder, testLogger(), nil)

	_, err := orchestrator.Submit(context.Background(), &domain.Request{Mode: domain.ModeBatch, Texts: []string{"a"}})
	require.NoError(t, err)

	_, err = orchestrator.Submit(context.Background(), &domain.Request{Mode: domain.ModeBatch, Texts: []string{"b"}})
	require.ErrorIs(t, err, domain.ErrQueueFull)
}

func TestOrchestrator_HealthReport(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.orchestrator.Submit(context.Background(), &domain.Request{Text: "hi", Mode: domain.ModeChat})
	require.NoError(t, err)

	health := p.orchestrator.Health()
	require.NotNil(t, health)
	assert.Equal(t, CircuitClosed, health.Targets[domain.TargetSmallLocal].State)
	assert.Equal(t, CircuitClosed, health.Targets[domain.TargetCloudFallback].State)
	assert.Equal(t, int64(1), health.Cache.Misses)
	assert.Equal(t, 0, health.Queue.Running)
}
