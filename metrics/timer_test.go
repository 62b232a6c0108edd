package metrics

import (
	"errors"
	"testing"
)

// TestTimerStopWithoutStart tests the stop precondition
func TestTimerStopWithoutStart(t *testing.T) {
	timer := NewTimerManager()

	err := timer.Stop("x")
	if !errors.Is(err, ErrTimerNotStarted) {
		t.Errorf("Expected ErrTimerNotStarted, got %v", err)
	}
}

// TestTimerStartStop tests a normal interval cycle
func TestTimerStartStop(t *testing.T) {
	timer := NewTimerManager()

	timer.Start("x")
	if err := timer.Stop("x"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	elapsed, ok := timer.Elapsed["x"]
	if !ok {
		t.Fatal("Expected elapsed time for interval x")
	}
	if elapsed < 0 {
		t.Errorf("Expected non-negative elapsed time, got %v", elapsed)
	}

	// The interval is closed: stopping again is a violation.
	if err := timer.Stop("x"); !errors.Is(err, ErrTimerNotStarted) {
		t.Errorf("Expected ErrTimerNotStarted on double stop, got %v", err)
	}
}

// TestTimerReset tests that reset clears open and closed intervals
func TestTimerReset(t *testing.T) {
	timer := NewTimerManager()

	timer.Start("open")
	timer.Start("closed")
	if err := timer.Stop("closed"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	timer.Reset()

	if len(timer.Elapsed) != 0 {
		t.Errorf("Expected no elapsed intervals after reset, got %d", len(timer.Elapsed))
	}
	if err := timer.Stop("open"); !errors.Is(err, ErrTimerNotStarted) {
		t.Errorf("Expected ErrTimerNotStarted after reset, got %v", err)
	}

	// A fresh cycle after reset works.
	timer.Start("x")
	if err := timer.Stop("x"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// TestTimerRestart tests that re-starting an open interval is allowed
func TestTimerRestart(t *testing.T) {
	timer := NewTimerManager()

	timer.Start("x")
	timer.Start("x")
	if err := timer.Stop("x"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}
