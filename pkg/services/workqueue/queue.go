// Package workqueue runs detection jobs on a bounded queue with a fixed
// worker pool. When the queue is full new jobs are dropped, not blocked;
// the completion endpoint must stay fast even under backlog.
package workqueue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/insightqa/insight-engine/pkg/metrics"
)

// Job identifies one unit of work to analyze.
type Job struct {
	UnitID     string
	EnqueuedAt time.Time
}

// Handler processes one job. It must respect ctx cancellation.
type Handler func(ctx context.Context, job Job)

// Queue is a bounded job channel drained by a fixed set of workers.
type Queue struct {
	jobs    chan Job
	handler Handler
	workers int
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New builds a queue with the given capacity and worker count.
// Call Start before enqueueing.
func New(size, workers int, handler Handler, m *metrics.Metrics, logger *zap.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobs:    make(chan Job, size),
		handler: handler,
		workers: workers,
		metrics: m,
		logger:  logger.Named("workqueue"),
	}
}

// Start launches the worker pool. ctx is the base context handed to job
// handlers; cancelling it aborts in-flight work, while Shutdown lets
// workers finish draining.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("workers started", zap.Int("workers", q.workers), zap.Int("capacity", cap(q.jobs)))
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.metrics.QueueDepth.Set(float64(len(q.jobs)))
		q.handler(ctx, job)
		q.metrics.JobsProcessed.Inc()
	}
}

// Enqueue offers a job without blocking. Returns false when the queue is
// full or shut down; the job is dropped with a warn log either way.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("queue shut down, dropping job", zap.String("unit_id", job.UnitID))
		q.metrics.JobsDropped.Inc()
		return false
	}

	select {
	case q.jobs <- job:
		q.metrics.JobsEnqueued.Inc()
		q.metrics.QueueDepth.Set(float64(len(q.jobs)))
		return true
	default:
		q.logger.Warn("queue full, dropping job", zap.String("unit_id", job.UnitID))
		q.metrics.JobsDropped.Inc()
		return false
	}
}

// Shutdown stops accepting jobs and waits for workers to drain the queue,
// up to ctx's deadline.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("queue drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
