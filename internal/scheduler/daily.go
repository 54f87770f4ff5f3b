// Package scheduler guards the daily generation quota. Multiple triggers
// (cron, manual invocation) may race for the scheduling pass; a file lock
// ensures only one performs it, and the run history bounds how many
// articles one day produces.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"inkwell/internal/logger"
)

// RunCounter reports how many runs started at or after a cutoff.
type RunCounter interface {
	RunsSince(ctx context.Context, cutoff time.Time) (int, error)
}

// Daily coordinates the once-per-trigger scheduling pass.
type Daily struct {
	lockPath string
	limit    int
	counter  RunCounter
	now      func() time.Time
}

// NewDaily creates the scheduler. limit is the maximum number of runs per
// calendar day (local time).
func NewDaily(lockPath string, limit int, counter RunCounter) *Daily {
	if limit <= 0 {
		limit = 1
	}
	return &Daily{
		lockPath: lockPath,
		limit:    limit,
		counter:  counter,
		now:      time.Now,
	}
}

// Acquire attempts to win the scheduling pass. It returns a release
// function and true when the caller holds the pass and the daily quota
// allows another run. Lock losers and quota-exhausted callers get false;
// losing is a normal skip, not an error.
func (d *Daily) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return nil, false, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(d.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring scheduler lock: %w", err)
	}
	if !locked {
		logger.Debug("Another trigger holds the scheduling pass, skipping")
		return nil, false, nil
	}

	release = func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Releasing scheduler lock failed", "error", err.Error())
		}
	}

	count, err := d.counter.RunsSince(ctx, d.startOfDay())
	if err != nil {
		release()
		return nil, false, fmt.Errorf("reading run count: %w", err)
	}
	if count >= d.limit {
		logger.Info("Daily generation quota reached, skipping", "count", count, "limit", d.limit)
		release()
		return nil, false, nil
	}

	return release, true, nil
}

// startOfDay returns local midnight for the current day.
func (d *Daily) startOfDay() time.Time {
	now := d.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
