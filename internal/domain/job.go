package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a generation job
type JobStatus string

// Possible job status values
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPublished  JobStatus = "published"
	JobStatusFailed     JobStatus = "failed"
)

// allowedTransitions lists every status change the lifecycle permits.
// processing -> queued is the requeue edge used only on worker shutdown.
var allowedTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing},
	JobStatusProcessing: {JobStatusPublished, JobStatusFailed, JobStatusQueued},
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusPublished, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusPublished || s == JobStatusFailed
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	return string(s)
}

// JobRequest is everything the upload surface collects for a new job.
// Coordinates and device id are optional and carried through untouched.
type JobRequest struct {
	Prompt   string
	Lat      *float64
	Lon      *float64
	DeviceID string
}

// Validate checks the optional coordinates. The prompt may be empty: the
// generators decide what an empty prompt means.
func (r JobRequest) Validate() error {
	if r.Lat != nil && (*r.Lat < -90 || *r.Lat > 90) {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, *r.Lat)
	}
	if r.Lon != nil && (*r.Lon < -180 || *r.Lon > 180) {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, *r.Lon)
	}
	return nil
}

// HasMetadata reports whether any optional field is set.
func (r JobRequest) HasMetadata() bool {
	return r.Lat != nil || r.Lon != nil || r.DeviceID != ""
}

// Job is one prompt-to-feed-item generation request and its current state.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Prompt    string    `json:"prompt"`
	Lat       *float64  `json:"lat,omitempty"`
	Lon       *float64  `json:"lon,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewJob creates a queued job with the given identifier.
func NewJob(id string, req JobRequest) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Status:    JobStatusQueued,
		Prompt:    req.Prompt,
		Lat:       req.Lat,
		Lon:       req.Lon,
		DeviceID:  req.DeviceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus moves the job to status if the lifecycle permits it.
// Setting the current status again is a no-op.
func (j *Job) SetStatus(status JobStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobStatus, status)
	}
	if j.Status == status {
		return nil
	}
	if !j.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	if status != JobStatusFailed {
		j.Error = ""
	}
	return nil
}
