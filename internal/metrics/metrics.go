package metrics

import (
	"sync/atomic"
	"time"
)

// opCounters holds the counters for one operation class. Each counter is
// atomic on its own; a snapshot is not atomic across counters.
type opCounters struct {
	attempts   atomic.Int64
	successes  atomic.Int64
	durationMs atomic.Int64
}

func (c *opCounters) record(d time.Duration, success bool) {
	c.attempts.Add(1)
	if success {
		c.successes.Add(1)
	}
	c.durationMs.Add(d.Milliseconds())
}

func (c *opCounters) reset() {
	c.attempts.Store(0)
	c.successes.Store(0)
	c.durationMs.Store(0)
}

func (c *opCounters) snapshot() opSnapshot {
	return opSnapshot{
		Attempts:        c.attempts.Load(),
		Successes:       c.successes.Load(),
		TotalDurationMs: c.durationMs.Load(),
	}
}

// Registry aggregates backend call metrics. It is safe for concurrent use.
type Registry struct {
	caption    opCounters
	imageStart opCounters
	imagePoll  opCounters
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RecordCaption records one caption call.
func (r *Registry) RecordCaption(d time.Duration, success bool) {
	r.caption.record(d, success)
}

// RecordImageStart records one image-start call.
func (r *Registry) RecordImageStart(d time.Duration, success bool) {
	r.imageStart.record(d, success)
}

// RecordImagePoll records one image-poll attempt.
func (r *Registry) RecordImagePoll(d time.Duration, success bool) {
	r.imagePoll.record(d, success)
}

// Snapshot returns the current cumulative values.
func (r *Registry) Snapshot() Snapshot {
	caption := r.caption.snapshot()
	start := r.imageStart.snapshot()
	poll := r.imagePoll.snapshot()
	return Snapshot{
		CaptionAttempts:           caption.Attempts,
		CaptionSuccesses:          caption.Successes,
		CaptionTotalDurationMs:    caption.TotalDurationMs,
		ImageStartAttempts:        start.Attempts,
		ImageStartSuccesses:       start.Successes,
		ImageStartTotalDurationMs: start.TotalDurationMs,
		ImagePollAttempts:         poll.Attempts,
		ImagePollSuccesses:        poll.Successes,
		ImagePollTotalDurationMs:  poll.TotalDurationMs,
	}
}

// Reset zeroes every counter. Intended for tests.
func (r *Registry) Reset() {
	r.caption.reset()
	r.imageStart.reset()
	r.imagePoll.reset()
}

// opSnapshot is the cumulative view of one operation class.
type opSnapshot struct {
	Attempts        int64 `json:"attempts"`
	Successes       int64 `json:"successes"`
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// Snapshot is an immutable read of all counters.
type Snapshot struct {
	CaptionAttempts           int64 `json:"captionAttempts"`
	CaptionSuccesses          int64 `json:"captionSuccesses"`
	CaptionTotalDurationMs    int64 `json:"captionTotalDurationMs"`
	ImageStartAttempts        int64 `json:"imageStartAttempts"`
	ImageStartSuccesses       int64 `json:"imageStartSuccesses"`
	ImageStartTotalDurationMs int64 `json:"imageStartTotalDurationMs"`
	ImagePollAttempts         int64 `json:"imagePollAttempts"`
	ImagePollSuccesses        int64 `json:"imagePollSuccesses"`
	ImagePollTotalDurationMs  int64 `json:"imagePollTotalDurationMs"`
}
