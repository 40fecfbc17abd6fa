package quiz

import (
	"sync"
	"time"

	"quiz-competition-service/internal/domain"
)

// Lifecycle is the single process-wide quiz phase, mutated only by
// administrator actions and observed by every session. All mutations funnel
// through one mutex so a reset racing a result submission can never observe a
// half-applied state.
type Lifecycle struct {
	mu        sync.Mutex
	state     domain.LifecycleState
	startTime time.Time
	resetTime time.Time
	epoch     uint64
	now       func() time.Time
}

// NewLifecycle starts in the waiting state.
func NewLifecycle() *Lifecycle {
	return NewLifecycleWithClock(time.Now)
}

// NewLifecycleWithClock allows deterministic timestamps in tests.
func NewLifecycleWithClock(now func() time.Time) *Lifecycle {
	return &Lifecycle{state: domain.LifecycleWaiting, now: now}
}

// Start moves the quiz to the started state. Repeated Start is idempotent
// overwrite: it refreshes the start timestamp rather than failing.
func (l *Lifecycle) Start() domain.LifecycleSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = domain.LifecycleStarted
	l.startTime = l.now()
	return l.snapshotLocked()
}

// Complete marks the quiz as completed. Only meaningful after a start; a
// completed quiz still requires a reset before the next run.
func (l *Lifecycle) Complete() domain.LifecycleSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == domain.LifecycleStarted {
		l.state = domain.LifecycleCompleted
	}
	return l.snapshotLocked()
}

// Reset unconditionally returns the quiz to waiting and bumps the epoch. It
// always succeeds regardless of the current state. Callers are responsible
// for clearing answers and results under the same serialization point.
func (l *Lifecycle) Reset() domain.LifecycleSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = domain.LifecycleWaiting
	l.startTime = time.Time{}
	l.resetTime = l.now()
	l.epoch++
	return l.snapshotLocked()
}

// Snapshot returns the current phase for polling observers.
func (l *Lifecycle) Snapshot() domain.LifecycleSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Epoch identifies the current quiz run; it changes on every reset.
func (l *Lifecycle) Epoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

func (l *Lifecycle) snapshotLocked() domain.LifecycleSnapshot {
	return domain.LifecycleSnapshot{
		State:     l.state,
		StartTime: l.startTime,
		ResetTime: l.resetTime,
		Epoch:     l.epoch,
	}
}
