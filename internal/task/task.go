package task

import (
	"context"
	"errors"

	"github.com/snaptrace/snaptrace-api/internal/domain"
	"github.com/snaptrace/snaptrace-api/internal/generation"
)

// Common worker pool errors
var (
	// ErrWorkerShutdown is the cancellation cause set when the pool is stopped.
	// Stage errors observed under this cause requeue the job instead of failing it.
	ErrWorkerShutdown = errors.New("worker pool shutting down")

	ErrPoolStarted = errors.New("worker pool already started")
	ErrPoolStopped = errors.New("worker pool already stopped")
)

// JobStore is the part of the job store the workers depend on.
type JobStore interface {
	// Dequeue blocks until a job id is available or ctx is done
	Dequeue(ctx context.Context) (string, error)

	// ClaimJob moves a queued job to processing atomically; it fails for a
	// job that is unknown or not queued
	ClaimJob(id string) (domain.Job, error)
	MarkFailed(id, reason string) error
	PublishItem(item domain.FeedItem)

	// GeneratorsFor returns the generators bound to the job at enqueue time
	GeneratorsFor(id string) generation.Pair
	ReleaseBinding(id string)

	// Requeue returns the job to the head of the queue, keeping its binding
	Requeue(ctx context.Context, id string) error
	QueueDepth() int
}
