package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job lifecycle event types
const (
	TypeJobCreated    = "job.created"
	TypeJobEnqueued   = "job.enqueued"
	TypeJobProcessing = "job.processing"
	TypeJobPublished  = "job.published"
	TypeJobFailed     = "job.failed"
	TypeJobRequeued   = "job.requeued"
)

// JobEvent records one lifecycle step of a job.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the TypeJob* constants
	Type string `json:"type"`

	// JobID identifies the job the event is about
	JobID string `json:"jobId"`

	// Status is the job status after the step
	Status string `json:"status"`

	// Reason explains failures; empty otherwise
	Reason string `json:"reason,omitempty"`

	// WorkerID is the worker that produced the event, or -1 outside the worker pool
	WorkerID int `json:"workerId"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"createdAt"`
}

// NewJobEvent creates a new JobEvent emitted outside the worker pool.
func NewJobEvent(eventType, jobID, status string) *JobEvent {
	return &JobEvent{
		ID:        uuid.New(),
		Type:      eventType,
		JobID:     jobID,
		Status:    status,
		WorkerID:  -1,
		CreatedAt: time.Now().UTC(),
	}
}

// WithReason sets the failure reason and returns the event.
func (e *JobEvent) WithReason(reason string) *JobEvent {
	e.Reason = reason
	return e
}

// WithWorker sets the producing worker and returns the event.
func (e *JobEvent) WithWorker(workerID int) *JobEvent {
	e.WorkerID = workerID
	return e
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *JobEvent) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *JobEvent) error {
	return nil
}
