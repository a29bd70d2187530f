package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error"})
}

func waitForState(t *testing.T, q *JobQueue, id string, want domain.JobState) *domain.JobStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := q.Status(id)
		require.NoError(t, err)
		if status.State == want {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _ := q.Status(id)
	t.Fatalf("job %s never reached %s, last state %s", id, want, status.State)
	return nil
}

func TestJobQueue_Lifecycle(t *testing.T) {
	executed := make(chan string, 1)
	q := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		executed <- job.ID
		return &domain.Response{Text: "done"}, nil
	}, nil, testLogger(), &QueueConfig{MaxDepth: 8})
	q.Start(context.Background(), 2)
	defer q.Stop()

	job, err := q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "work"})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	status := waitForState(t, q, job.ID, domain.JobStateCompleted)
	require.NotNil(t, status.Result)
	assert.Equal(t, "done", status.Result.Text)
	assert.Empty(t, status.Error)
	assert.NotNil(t, status.CompletedAt)
	assert.Equal(t, job.ID, <-executed)
}

func TestJobQueue_FailedJobExposesError(t *testing.T) {
	q := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		return nil, domain.ErrBackendUnavailable
	}, nil, testLogger(), &QueueConfig{MaxDepth: 8})
	q.Start(context.Background(), 1)
	defer q.Stop()

	job, err := q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "doomed"})
	require.NoError(t, err)

	status := waitForState(t, q, job.ID, domain.JobStateFailed)
	assert.Contains(t, status.Error, "unavailable")
	assert.Nil(t, status.Result)
}

func TestJobQueue_NonTerminalHidesResult(t *testing.T) {
	release := make(chan struct{})
	q := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		<-release
		return &domain.Response{Text: "late"}, nil
	}, nil, testLogger(), &QueueConfig{MaxDepth: 8})
	q.Start(context.Background(), 1)
	defer q.Stop()
	defer close(release)

	job, err := q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "work"})
	require.NoError(t, err)

	status := waitForState(t, q, job.ID, domain.JobStateRunning)
	assert.Nil(t, status.Result, "running jobs must not leak a result")
	assert.Empty(t, status.Error)
}

func TestJobQueue_BackpressureQueueFull(t *testing.T) {
	// No workers started: jobs stay in the lane.
	q := NewJobQueue(nil, nil, testLogger(), &QueueConfig{MaxDepth: 2})

	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(context.Background(), domain.JobTypeBatchEmbed, domain.PriorityBatch, &domain.Request{Text: "x"})
		require.NoError(t, err)
	}

	_, err := q.Enqueue(context.Background(), domain.JobTypeBatchEmbed, domain.PriorityBatch, &domain.Request{Text: "x"})
	require.ErrorIs(t, err, domain.ErrQueueFull)

	// The rejected job left no trace; lanes are per priority class, so the
	// interactive lane still accepts work.
	_, err = q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "x"})
	require.NoError(t, err)

	stats := q.Stats()
	assert.Equal(t, 2, stats.BatchDepth)
	assert.Equal(t, 1, stats.InteractiveDepth)
}

func TestJobQueue_CancelBeforeClaimNeverRuns(t *testing.T) {
	var ran atomic.Int64
	q := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		ran.Add(1)
		return &domain.Response{}, nil
	}, nil, testLogger(), &QueueConfig{MaxDepth: 8})

	// Enqueue and cancel before any worker exists.
	job, err := q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "x"})
	require.NoError(t, err)
	require.NoError(t, q.Cancel(context.Background(), job.ID))

	status, err := q.Status(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, status.State)
	assert.Equal(t, domain.ErrCancelled.Error(), status.Error)

	// Workers must skip the cancelled job when they drain the lane.
	q.Start(context.Background(), 1)
	defer q.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), ran.Load(), "cancelled job must never execute")
}

func TestJobQueue_CancelRunningJobRefused(t *testing.T) {
	release := make(chan struct{})
	q := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		<-release
		return &domain.Response{}, nil
	}, nil, testLogger(), &QueueConfig{MaxDepth: 8})
	q.Start(context.Background(), 1)
	defer q.Stop()
	defer close(release)

	job, err := q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "x"})
	require.NoError(t, err)
	waitForState(t, q, job.ID, domain.JobStateRunning)

	err = q.Cancel(context.Background(), job.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobQueue_UnknownJob(t *testing.T) {
	q := NewJobQueue(nil, nil, testLogger(), nil)

	_, err := q.Status("no-such-job")
	require.ErrorIs(t, err, domain.ErrJobNotFound)

	err = q.Cancel(context.Background(), "no-such-job")
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobQueue_InteractiveRunsFirst(t *testing.T) {
	var mu sync.Mutex
	var order []domain.Priority
	q := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		mu.Lock()
		order = append(order, job.Priority)
		mu.Unlock()
		return &domain.Response{}, nil
	}, nil, testLogger(), &QueueConfig{MaxDepth: 8})

	// Fill both lanes before the single worker starts; batch went in first.
	batch, err := q.Enqueue(context.Background(), domain.JobTypeBatchEmbed, domain.PriorityBatch, &domain.Request{Text: "x"})
	require.NoError(t, err)
	interactive, err := q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "x"})
	require.NoError(t, err)

	q.Start(context.Background(), 1)
	defer q.Stop()
	waitForState(t, q, batch.ID, domain.JobStateCompleted)
	waitForState(t, q, interactive.ID, domain.JobStateCompleted)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, domain.PriorityInteractive, order[0], "interactive lane drains before batch")
}

type recordingStore struct {
	mu    sync.Mutex
	saves []domain.JobState
}

func (s *recordingStore) Save(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, job.State)
	return nil
}

func TestJobQueue_PersistsTransitions(t *testing.T) {
	store := &recordingStore{}
	q := NewJobQueue(func(ctx context.Context, job *domain.Job) (*domain.Response, error) {
		return &domain.Response{}, nil
	}, store, testLogger(), &QueueConfig{MaxDepth: 8})
	q.Start(context.Background(), 1)
	defer q.Stop()

	job, err := q.Enqueue(context.Background(), domain.JobTypeLongCompletion, domain.PriorityInteractive, &domain.Request{Text: "x"})
	require.NoError(t, err)
	waitForState(t, q, job.ID, domain.JobStateCompleted)

	deadline := time.Now().Add(time.Second)
	for {
		store.mu.Lock()
		n := len(store.saves)
		last := domain.JobState("")
		if n > 0 {
			last = store.saves[n-1]
		}
		store.mu.Unlock()
		if last == domain.JobStateCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("store never saw the completed transition, saves: %v", store.saves)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
