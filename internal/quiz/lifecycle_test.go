package quiz

import (
	"testing"
	"time"

	"quiz-competition-service/internal/domain"
)

func TestLifecycleStartsInWaiting(t *testing.T) {
	lifecycle := NewLifecycle()

	snap := lifecycle.Snapshot()
	if snap.State != domain.LifecycleWaiting {
		t.Fatalf("expected waiting, got %s", snap.State)
	}
	if !snap.StartTime.IsZero() {
		t.Fatalf("expected zero start time before start")
	}
}

func TestStartSetsTimestampAndRepeatedStartOverwrites(t *testing.T) {
	clock := newFakeClock()
	lifecycle := NewLifecycleWithClock(clock.Now)

	first := lifecycle.Start()
	if first.State != domain.LifecycleStarted || first.StartTime.IsZero() {
		t.Fatalf("started state must carry a start time, got %+v", first)
	}

	clock.Advance(time.Minute)
	second := lifecycle.Start()
	if second.State != domain.LifecycleStarted {
		t.Fatalf("repeated start must stay started, got %s", second.State)
	}
	if !second.StartTime.After(first.StartTime) {
		t.Fatalf("repeated start must overwrite the timestamp: %v vs %v", second.StartTime, first.StartTime)
	}
}

func TestCompleteOnlyFromStarted(t *testing.T) {
	lifecycle := NewLifecycle()

	if snap := lifecycle.Complete(); snap.State != domain.LifecycleWaiting {
		t.Fatalf("completing a waiting quiz must be a no-op, got %s", snap.State)
	}

	lifecycle.Start()
	if snap := lifecycle.Complete(); snap.State != domain.LifecycleCompleted {
		t.Fatalf("expected completed, got %s", snap.State)
	}
}

func TestResetAlwaysSucceedsAndBumpsEpoch(t *testing.T) {
	clock := newFakeClock()
	lifecycle := NewLifecycleWithClock(clock.Now)

	before := lifecycle.Epoch()
	lifecycle.Start()
	snap := lifecycle.Reset()
	if snap.State != domain.LifecycleWaiting {
		t.Fatalf("expected waiting after reset, got %s", snap.State)
	}
	if !snap.StartTime.IsZero() {
		t.Fatalf("reset must clear the start time")
	}
	if snap.ResetTime.IsZero() {
		t.Fatalf("reset must record the reset time")
	}
	if lifecycle.Epoch() != before+1 {
		t.Fatalf("expected epoch bump, got %d", lifecycle.Epoch())
	}

	// Reset from waiting also succeeds.
	if snap := lifecycle.Reset(); snap.State != domain.LifecycleWaiting {
		t.Fatalf("reset from waiting must succeed, got %s", snap.State)
	}
	if lifecycle.Epoch() != before+2 {
		t.Fatalf("every reset bumps the epoch, got %d", lifecycle.Epoch())
	}
}
