package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/snaptrace/snaptrace-api/internal/domain"
	"github.com/snaptrace/snaptrace-api/internal/events"
	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/redact"
	"github.com/snaptrace/snaptrace-api/internal/store"
)

// WorkerPool manages a pool of worker goroutines that take job ids from the
// store's queue and run them through the image and caption stages.
type WorkerPool struct {
	// store provides the queue, job state and generator bindings
	store JobStore

	// emitter receives job lifecycle events
	emitter events.EventEmitter

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is the pool lifecycle context; Stop cancels it with ErrWorkerShutdown
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelCauseFunc

	// logger for structured logging
	logger *slog.Logger

	// errorHandler is called when a job fails. It must be set before Start.
	// If nil, errors are only logged
	errorHandler func(jobID string, err error)

	mu      sync.Mutex
	started bool
	stopped bool

	active    atomic.Int32
	published atomic.Int64
	failed    atomic.Int64
	requeued  atomic.Int64
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers    int   `json:"workers"`
	Active     int   `json:"active"`
	QueueDepth int   `json:"queueDepth"`
	Published  int64 `json:"published"`
	Failed     int64 `json:"failed"`
	Requeued   int64 `json:"requeued"`
}

// NewWorkerPool creates a new worker pool with the specified configuration.
// A nil emitter discards lifecycle events.
func NewWorkerPool(
	store JobStore,
	emitter events.EventEmitter,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	logger = logger.With("component", "worker_pool")

	// Apply defaults for invalid config values
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	if emitter == nil {
		emitter = events.NopEmitter{}
	}

	ctx, cancel := context.WithCancelCause(context.Background())

	return &WorkerPool{
		store:       store,
		emitter:     emitter,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// SetErrorHandler allows setting a custom error handler for job failures
func (p *WorkerPool) SetErrorHandler(handler func(jobID string, err error)) {
	p.errorHandler = handler
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if p.started {
		return ErrPoolStarted
	}
	p.started = true

	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return nil
}

// Stop signals shutdown and waits for the workers to exit or ctx to end.
// Jobs that were in flight are returned to the queue. Calling Stop more than
// once is safe.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cancel(ErrWorkerShutdown)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

// Stats reports pool counters and the current queue depth.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Workers:    p.workerCount,
		Active:     int(p.active.Load()),
		QueueDepth: p.store.QueueDepth(),
		Published:  p.published.Load(),
		Failed:     p.failed.Load(),
		Requeued:   p.requeued.Load(),
	}
}

// worker processes jobs from the queue until the pool is stopped
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		jobID, err := p.store.Dequeue(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				logger.Debug("stopping worker")
				return
			}
			logger.Error("failed to take job from queue", "error", err)
			continue
		}

		p.active.Add(1)
		p.processJob(id, jobID)
		p.active.Add(-1)
	}
}

// processJob runs one job end to end
func (p *WorkerPool) processJob(workerID int, jobID string) {
	logger := p.logger.With("job_id", jobID, "worker_id", workerID)

	job, err := p.store.ClaimJob(jobID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			logger.Warn("dequeued unknown job, skipping")
			p.store.ReleaseBinding(jobID)
		case job.Status.Terminal():
			logger.Warn("dequeued finished job, skipping", "status", job.Status)
			p.store.ReleaseBinding(jobID)
		default:
			// Another worker holds it and still needs the binding.
			logger.Warn("dequeued job that is not queued, skipping", "status", job.Status)
		}
		return
	}

	// Shutdown may have started between Dequeue and here.
	if p.shuttingDown() {
		p.requeue(workerID, jobID, logger)
		return
	}

	p.emit(p.ctx, events.NewJobEvent(events.TypeJobProcessing, jobID, string(domain.JobStatusProcessing)).
		WithWorker(workerID))

	pair := p.store.GeneratorsFor(jobID)
	item, err := p.runStages(p.ctx, pair, job)
	if err != nil {
		if p.shuttingDown() && isCancellation(err) {
			logger.Info("job interrupted by shutdown", "error", err)
			p.requeue(workerID, jobID, logger)
			return
		}
		p.fail(workerID, jobID, err, logger)
		return
	}

	p.store.PublishItem(item)
	p.store.ReleaseBinding(jobID)
	p.emit(p.ctx, events.NewJobEvent(events.TypeJobPublished, jobID, string(domain.JobStatusPublished)).
		WithWorker(workerID))
	p.published.Add(1)
}

// runStages generates the image and then the caption. The caption stage
// never starts unless the image stage succeeded.
func (p *WorkerPool) runStages(ctx context.Context, pair generation.Pair, job domain.Job) (domain.FeedItem, error) {
	if !pair.Valid() {
		return domain.FeedItem{}, fmt.Errorf("%w: job has no generators bound", generation.ErrInvalidConfig)
	}

	image, err := pair.Image.Generate(ctx, job.Prompt)
	if err != nil {
		return domain.FeedItem{}, fmt.Errorf("image generation: %w", err)
	}

	caption, err := pair.Caption.Caption(ctx, image.URL, job.Prompt)
	if err != nil {
		return domain.FeedItem{}, fmt.Errorf("caption generation: %w", err)
	}

	return domain.NewFeedItem(job.ID, image.URL, caption), nil
}

func (p *WorkerPool) fail(workerID int, jobID string, err error, logger *slog.Logger) {
	reason := redact.Error(err)
	logger.Error("job failed", "error", reason)

	if markErr := p.store.MarkFailed(jobID, reason); markErr != nil {
		logger.Error("failed to update job status to failed", "error", markErr)
	}
	p.store.ReleaseBinding(jobID)

	p.emit(p.ctx, events.NewJobEvent(events.TypeJobFailed, jobID, string(domain.JobStatusFailed)).
		WithReason(reason).
		WithWorker(workerID))

	if p.errorHandler != nil {
		p.errorHandler(jobID, err)
	}
	p.failed.Add(1)
}

func (p *WorkerPool) requeue(workerID int, jobID string, logger *slog.Logger) {
	// The lifecycle context is already cancelled.
	ctx := context.WithoutCancel(p.ctx)

	if err := p.store.Requeue(ctx, jobID); err != nil {
		logger.Error("failed to requeue job", "error", err)
		return
	}
	p.emit(ctx, events.NewJobEvent(events.TypeJobRequeued, jobID, string(domain.JobStatusQueued)).
		WithWorker(workerID))
	p.requeued.Add(1)
}

func (p *WorkerPool) shuttingDown() bool {
	return errors.Is(context.Cause(p.ctx), ErrWorkerShutdown)
}

func (p *WorkerPool) emit(ctx context.Context, event *events.JobEvent) {
	if err := p.emitter.EmitEvent(ctx, event); err != nil {
		p.logger.Debug("job event handler failed",
			"event_type", event.Type,
			"job_id", event.JobID,
			"error", err)
	}
}

// isCancellation reports whether err came from a cancelled context rather
// than from the stage itself.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrWorkerShutdown)
}
