package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/snaptrace/snaptrace-api/internal/platform/logger"
)

// LogHandler writes every event to a structured logger. Failures are logged
// at warn level, everything else at info.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(l *slog.Logger) *LogHandler {
	return &LogHandler{logger: l.With("component", "job_events")}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *JobEvent) error {
	log := logger.FromContextOrDefault(ctx, h.logger)
	attrs := []any{
		"event_id", event.ID,
		"job_id", event.JobID,
		"status", event.Status,
	}
	if event.WorkerID >= 0 {
		attrs = append(attrs, "worker_id", event.WorkerID)
	}

	if event.Type == TypeJobFailed {
		attrs = append(attrs, "reason", event.Reason)
		log.WarnContext(ctx, event.Type, attrs...)
		return nil
	}
	log.InfoContext(ctx, event.Type, attrs...)
	return nil
}

// StatusCounter counts events by type.
type StatusCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewStatusCounter creates an empty StatusCounter.
func NewStatusCounter() *StatusCounter {
	return &StatusCounter{counts: make(map[string]int64)}
}

// HandleEvent implements EventHandler.
func (c *StatusCounter) HandleEvent(_ context.Context, event *JobEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[event.Type]++
	return nil
}

// Counts returns a copy of the per-type counts.
func (c *StatusCounter) Counts() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
