package engine

import (
	"sync"
	"time"
)

// Snapshot is one progress observation.
type Snapshot struct {
	Completed int
	Total     int
	Percent   float64
	Rate      float64 // accounts per second
	ETA       time.Duration
}

// Tracker derives throughput and ETA from account-completion events.
// Purely computational; Completed never decreases.
type Tracker struct {
	mu        sync.Mutex
	total     int
	completed int
	start     time.Time
	now       func() time.Time // test hook
}

// NewTracker starts the clock for a run of total accounts.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total, start: time.Now(), now: time.Now}
}

// AccountFinished records one completed account, success or failure, and
// returns the resulting snapshot.
func (t *Tracker) AccountFinished() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed++
	snap := Snapshot{Completed: t.completed, Total: t.total}
	if t.total > 0 {
		snap.Percent = float64(t.completed) / float64(t.total) * 100
	}

	elapsed := t.now().Sub(t.start)
	if elapsed > 0 {
		snap.Rate = float64(t.completed) / elapsed.Seconds()
	}
	if snap.Rate > 0 {
		remaining := float64(t.total-t.completed) / snap.Rate
		snap.ETA = time.Duration(remaining * float64(time.Second))
	}
	return snap
}

// Elapsed reports wall-clock time since the run started.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.start)
}

// Completed reports how many accounts have finished.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}
