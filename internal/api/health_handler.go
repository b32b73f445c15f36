package api

import (
	"net/http"

	"github.com/snaptrace/snaptrace-api/internal/api/shared"
	"github.com/snaptrace/snaptrace-api/internal/metrics"
	"github.com/snaptrace/snaptrace-api/internal/task"
)

// PoolStats reports worker pool state.
type PoolStats interface {
	Stats() task.Stats
}

// EventCounts reports lifecycle event counts by type.
type EventCounts interface {
	Counts() map[string]int64
}

// MetricsSource provides a snapshot of backend call metrics.
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string           `json:"status"`
	Workers    int              `json:"workers"`
	Active     int              `json:"active"`
	QueueDepth int              `json:"queueDepth"`
	Events     map[string]int64 `json:"events"`
}

// StatusHandler serves liveness and metrics endpoints.
type StatusHandler struct {
	pool    PoolStats
	events  EventCounts
	metrics MetricsSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(pool PoolStats, events EventCounts, metrics MetricsSource) *StatusHandler {
	return &StatusHandler{pool: pool, events: events, metrics: metrics}
}

// Health handles GET /health. It always reports "ok" while the process serves
// requests.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.pool.Stats()
	events := h.events.Counts()
	if events == nil {
		events = map[string]int64{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:     "ok",
		Workers:    stats.Workers,
		Active:     stats.Active,
		QueueDepth: stats.QueueDepth,
		Events:     events,
	})
}

// Metrics handles GET /v1/metrics.
func (h *StatusHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.metrics.Snapshot())
}
