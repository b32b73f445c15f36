package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/snaptrace/snaptrace-api/internal/domain"
	"github.com/snaptrace/snaptrace-api/internal/events"
	"github.com/snaptrace/snaptrace-api/internal/generation"
)

// Store is the in-memory job store shared by the HTTP layer and the workers.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*domain.Job
	feed     map[string]domain.FeedItem
	bindings map[string]generation.Pair

	genMu    sync.RWMutex
	defaults generation.Pair

	queue   *JobQueue
	emitter events.EventEmitter
	logger  *slog.Logger
}

// New creates a Store whose jobs are bound to defaults until
// ConfigureGenerators replaces them. A nil emitter discards lifecycle events.
func New(defaults generation.Pair, emitter events.EventEmitter, logger *slog.Logger) *Store {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Store{
		jobs:     make(map[string]*domain.Job),
		feed:     make(map[string]domain.FeedItem),
		bindings: make(map[string]generation.Pair),
		defaults: defaults,
		queue:    NewJobQueue(),
		emitter:  emitter,
		logger:   logger.With("component", "job_store"),
	}
}

// CreateJob registers a new queued job and returns its identifier.
func (s *Store) CreateJob(ctx context.Context, req domain.JobRequest) string {
	id := uuid.NewString()
	job := domain.NewJob(id, req)

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	s.emit(ctx, events.NewJobEvent(events.TypeJobCreated, id, string(domain.JobStatusQueued)))
	return id
}

// Enqueue binds the job to the generators configured right now and appends it
// to the work queue. Unknown ids are queued too; the worker skips them.
func (s *Store) Enqueue(ctx context.Context, id string) {
	pair := s.Generators()

	s.mu.Lock()
	s.bindings[id] = pair
	s.mu.Unlock()

	s.queue.Push(id)
	s.emit(ctx, events.NewJobEvent(events.TypeJobEnqueued, id, string(domain.JobStatusQueued)))
}

// Dequeue blocks until a job id is available or ctx is done.
func (s *Store) Dequeue(ctx context.Context) (string, error) {
	return s.queue.Pop(ctx)
}

// Requeue moves a job back to queued and puts it at the head of the queue.
// Its generator binding is retained.
func (s *Store) Requeue(ctx context.Context, id string) error {
	if err := s.SetStatus(id, domain.JobStatusQueued); err != nil {
		return err
	}
	s.queue.PushFront(id)
	return nil
}

// QueueDepth returns the number of ids waiting to be processed.
func (s *Store) QueueDepth() int {
	return s.queue.Len()
}

// GetStatus returns the job status, or false when the job is unknown.
func (s *Store) GetStatus(id string) (domain.JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return "", false
	}
	return job.Status, true
}

// GetJob returns a copy of the job, or false when the job is unknown.
func (s *Store) GetJob(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// SetStatus changes the status of a known job. Unknown ids are ignored;
// transitions the job lifecycle forbids are rejected.
func (s *Store) SetStatus(id string, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	if err := job.SetStatus(status); err != nil {
		return fmt.Errorf("job %s: %w", id, err)
	}
	return nil
}

// ClaimJob moves a queued job to processing in one step and returns a copy of
// it. Only one caller can claim a given job. Unknown ids give ErrNotFound; a
// job in any other status gives ErrNotClaimable together with its current copy.
func (s *Store) ClaimJob(id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, ErrNotFound
	}
	if job.Status != domain.JobStatusQueued {
		return *job, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrNotClaimable)
	}
	if err := job.SetStatus(domain.JobStatusProcessing); err != nil {
		return *job, fmt.Errorf("job %s: %w", id, err)
	}
	return *job, nil
}

// MarkFailed sets the job to failed and keeps reason for the status endpoint.
// The caller is responsible for redacting reason.
func (s *Store) MarkFailed(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	if err := job.SetStatus(domain.JobStatusFailed); err != nil {
		return fmt.Errorf("job %s: %w", id, err)
	}
	job.Error = reason
	return nil
}

// PublishItem adds item to the feed and marks the job with the same id as
// published, if it exists. Published items are immutable: a second item for
// the same id is dropped.
func (s *Store) PublishItem(item domain.FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.feed[item.ID]; exists {
		s.logger.Warn("feed item already published, keeping the original", "job_id", item.ID)
		return
	}
	s.feed[item.ID] = item

	job, ok := s.jobs[item.ID]
	if !ok {
		return
	}
	if err := job.SetStatus(domain.JobStatusPublished); err != nil {
		s.logger.Warn("published item for job in unexpected state",
			"job_id", item.ID,
			"status", job.Status,
			"error", err)
	}
}

// FeedItem returns the published item for a job, or false if there is none.
func (s *Store) FeedItem(id string) (domain.FeedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.feed[id]
	return item, ok
}

// ListFeed returns up to limit items, newest first.
func (s *Store) ListFeed(limit int) []domain.FeedItem {
	if limit <= 0 {
		return []domain.FeedItem{}
	}

	s.mu.RLock()
	items := make([]domain.FeedItem, 0, len(s.feed))
	for _, item := range s.feed {
		items = append(items, item)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].NewerThan(items[j])
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// ConfigureGenerators replaces the default generator pair. Jobs that were
// already enqueued keep the pair they were bound to.
func (s *Store) ConfigureGenerators(pair generation.Pair) error {
	if !pair.Valid() {
		return ErrInvalidGenerators
	}
	s.genMu.Lock()
	s.defaults = pair
	s.genMu.Unlock()
	return nil
}

// Generators returns the current default generator pair.
func (s *Store) Generators() generation.Pair {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.defaults
}

// GeneratorsFor returns the pair bound to the job at enqueue time, falling back
// to the current defaults for jobs that were never bound.
func (s *Store) GeneratorsFor(id string) generation.Pair {
	s.mu.RLock()
	pair, ok := s.bindings[id]
	s.mu.RUnlock()
	if ok {
		return pair
	}
	return s.Generators()
}

// ReleaseBinding drops the generator binding of a job that reached a terminal state.
func (s *Store) ReleaseBinding(id string) {
	s.mu.Lock()
	delete(s.bindings, id)
	s.mu.Unlock()
}

// HasBinding reports whether the job still holds a generator binding.
func (s *Store) HasBinding(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bindings[id]
	return ok
}

func (s *Store) emit(ctx context.Context, event *events.JobEvent) {
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Debug("job event handler failed",
			"event_type", event.Type,
			"job_id", event.JobID,
			"error", err)
	}
}
