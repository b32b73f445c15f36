package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/snaptrace/snaptrace-api/internal/api/middleware"
)

// RouterDeps holds everything the HTTP surface talks to.
type RouterDeps struct {
	Jobs           JobService
	Feed           FeedLister
	Pool           PoolStats
	Events         EventCounts
	Metrics        MetricsSource
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewRouter builds the chi router for all public endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Trace(deps.Logger))
	r.Use(chimw.Recoverer)

	jobs := NewJobHandler(deps.Jobs, deps.MaxUploadBytes, deps.Logger)
	feed := NewFeedHandler(deps.Feed)
	status := NewStatusHandler(deps.Pool, deps.Events, deps.Metrics)

	r.Get("/health", status.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", jobs.CreateJob)
		r.Get("/jobs/{jobId}", jobs.GetJob)
		r.Get("/feed", feed.ListFeed)
		r.Get("/metrics", status.Metrics)
	})

	return r
}
