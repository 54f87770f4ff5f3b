package pipeline

import (
	"sync"
	"time"

	"inkwell/internal/core"
)

// Tracker holds per-job progress records with a short time-to-live. A
// record is owned by the run that created it and overwritten
// monotonically; readers only observe.
type Tracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]trackedJob
	now     func() time.Time
}

type trackedJob struct {
	state   core.JobState
	expires time.Time
}

// NewTracker creates a tracker whose records expire ttl after their last
// update.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Tracker{
		ttl:     ttl,
		entries: make(map[string]trackedJob),
		now:     time.Now,
	}
}

// Set overwrites the state for a job id. Progress never moves backwards;
// a stale lower value is clamped to the previous one.
func (t *Tracker) Set(id string, status core.JobStatus, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.purgeLocked()

	if prev, ok := t.entries[id]; ok && progress < prev.state.Progress {
		progress = prev.state.Progress
	}

	now := t.now()
	t.entries[id] = trackedJob{
		state: core.JobState{
			ID:        id,
			Status:    status,
			Progress:  progress,
			Message:   message,
			UpdatedAt: now,
		},
		expires: now.Add(t.ttl),
	}
}

// Get returns the current state for a job id, if it exists and has not
// expired.
func (t *Tracker) Get(id string) (core.JobState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok || t.now().After(entry.expires) {
		delete(t.entries, id)
		return core.JobState{}, false
	}
	return entry.state, true
}

// purgeLocked drops expired records. Caller holds the mutex.
func (t *Tracker) purgeLocked() {
	now := t.now()
	for id, entry := range t.entries {
		if now.After(entry.expires) {
			delete(t.entries, id)
		}
	}
}
