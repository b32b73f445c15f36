package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/snaptrace/snaptrace-api/internal/api/shared"
	"github.com/snaptrace/snaptrace-api/internal/domain"
	"github.com/snaptrace/snaptrace-api/internal/platform/logger"
	"github.com/snaptrace/snaptrace-api/internal/store"
)

// JobService is the part of the job store used by JobHandler.
type JobService interface {
	CreateJob(ctx context.Context, req domain.JobRequest) string
	Enqueue(ctx context.Context, id string)
	GetJob(id string) (domain.Job, bool)
	FeedItem(id string) (domain.FeedItem, bool)
}

// CreateJobResponse is returned by POST /v1/jobs.
type CreateJobResponse struct {
	JobID  string           `json:"jobId"`
	Status domain.JobStatus `json:"status"`
}

// JobStatusResponse is returned by GET /v1/jobs/{jobId}.
type JobStatusResponse struct {
	Status domain.JobStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
	Result *domain.FeedItem `json:"result,omitempty"`
}

// JobHandler serves job submission and status requests.
type JobHandler struct {
	jobs     JobService
	maxBytes int64
	logger   *slog.Logger
}

// NewJobHandler creates a JobHandler accepting uploads of at most maxBytes.
func NewJobHandler(jobs JobService, maxBytes int64, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		maxBytes: maxBytes,
		logger:   logger.With("component", "job_handler"),
	}
}

// CreateJob handles POST /v1/jobs.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	form, err := parseUpload(w, r, h.maxBytes)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	req := form.jobRequest()
	id := h.jobs.CreateJob(r.Context(), req)
	h.jobs.Enqueue(r.Context(), id)

	log.Info("job accepted",
		"job_id", id,
		"prompt_length", len(form.Prompt),
		"has_metadata", req.HasMetadata())

	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateJobResponse{
		JobID:  id,
		Status: domain.JobStatusQueued,
	})
}

// GetJob handles GET /v1/jobs/{jobId}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := getPathParam(r, "jobId")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		HandleAPIError(w, r, store.ErrNotFound)
		return
	}

	resp := JobStatusResponse{Status: job.Status, Error: job.Error}
	if job.Status == domain.JobStatusPublished {
		if item, ok := h.jobs.FeedItem(id); ok {
			resp.Result = &item
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
