package metrics

import (
	"fmt"
	"time"
)

// TimerManager tracks named wall-clock intervals inside the training loop.
// Intervals are single-threaded: one owner starts, stops and resets them.
type TimerManager struct {
	starts  map[string]time.Time
	Elapsed map[string]time.Duration
}

// NewTimerManager creates an empty timer manager.
func NewTimerManager() *TimerManager {
	return &TimerManager{
		starts:  make(map[string]time.Time),
		Elapsed: make(map[string]time.Duration),
	}
}

// Start opens the named interval. Restarting an open interval silently
// discards the previous start time.
func (t *TimerManager) Start(name string) {
	t.starts[name] = time.Now()
}

// Stop closes the named interval and records its elapsed time. Stopping an
// interval that was never started is a contract violation.
func (t *TimerManager) Stop(name string) error {
	start, ok := t.starts[name]
	if !ok {
		return fmt.Errorf("stop %q: %w", name, ErrTimerNotStarted)
	}

	t.Elapsed[name] = time.Since(start)
	delete(t.starts, name)
	return nil
}

// Reset discards all open and closed intervals.
func (t *TimerManager) Reset() {
	t.starts = make(map[string]time.Time)
	t.Elapsed = make(map[string]time.Duration)
}
