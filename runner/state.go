package runner

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tsawler/go-trainer/metrics"
)

// StateConfig enumerates the recognized per-stage options. Unrecognized,
// observer-specific settings travel in Extra.
type StateConfig struct {
	NEpochs        int
	ValidLoader    string
	MainMetric     string
	MinimizeMetric bool
	Verbose        bool
	Extra          map[string]interface{}
}

// DefaultStateConfig returns the baseline stage options.
func DefaultStateConfig() StateConfig {
	return StateConfig{
		NEpochs:        1,
		ValidLoader:    "valid",
		MainMetric:     "loss",
		MinimizeMetric: true,
	}
}

// Validate checks the config before a stage starts.
func (c StateConfig) Validate() error {
	if c.NEpochs <= 0 {
		return fmt.Errorf("n_epochs must be positive, got %d", c.NEpochs)
	}
	if c.ValidLoader == "" {
		return fmt.Errorf("valid_loader must not be empty")
	}
	if c.MainMetric == "" {
		return fmt.Errorf("main_metric must not be empty")
	}
	return nil
}

// Snapshot is the by-value hand-off between consecutive stages.
type Snapshot struct {
	Step  int
	Epoch int
}

// RunState is the mutable record threaded through one stage of a run. It is
// owned by exactly one Runner and mutated from a single goroutine; observers
// receive it by reference on every event.
type RunState struct {
	RunID  string
	Stage  string
	Config StateConfig

	Epoch int

	// Step counts cumulative samples processed. It never decreases, within
	// or across stages.
	Step int

	BatchSize    int
	LoaderName   string
	LoaderLen    int
	NeedBackward bool

	// EarlyStop requests the stage's epoch loop to stop after the current
	// epoch. The runner clears it before moving on.
	EarlyStop bool

	// Input and Output hold the current batch and the prediction result.
	Input  Batch
	Output Batch

	Timer   *metrics.TimerManager
	Metrics *metrics.Manager

	// Model artifacts for the stage. Criterion, Optimizer and Scheduler are
	// opaque to the loop; callbacks interpret them.
	Model     Model
	Criterion interface{}
	Optimizer interface{}
	Scheduler interface{}

	Logger *slog.Logger
}

// NewRunState builds the state for one stage. A non-nil prev migrates the
// step counter forward and continues the epoch count at prev.Epoch+1; the
// very first stage starts at epoch 0.
func NewRunState(stage string, cfg StateConfig, prev *Snapshot) (*RunState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("stage %q: %v", stage, err)
	}

	s := &RunState{
		RunID:   uuid.NewString(),
		Stage:   stage,
		Config:  cfg,
		Timer:   metrics.NewTimerManager(),
		Metrics: metrics.NewManager(cfg.ValidLoader, cfg.MainMetric, cfg.MinimizeMetric),
		Logger:  slog.Default(),
	}

	if prev != nil {
		s.Step = prev.Step
		s.Epoch = prev.Epoch + 1
	}

	return s, nil
}

// Snapshot captures the values that migrate into the next stage.
func (s *RunState) Snapshot() Snapshot {
	return Snapshot{Step: s.Step, Epoch: s.Epoch}
}

// preHook runs on the state before callbacks see an event.
func (s *RunState) preHook(e Event) {
	if !s.Config.Verbose {
		return
	}

	if e == EpochStart {
		s.Logger.Info("epoch start",
			"stage", s.Stage,
			"epoch", s.Epoch,
			"n_epochs", s.Config.NEpochs)
	}
}

// postHook runs on the state after all callbacks handled an event.
func (s *RunState) postHook(e Event) {
	if !s.Config.Verbose {
		return
	}

	if e == EpochEnd {
		args := []interface{}{
			"stage", s.Stage,
			"epoch", s.Epoch,
			"step", s.Step,
		}
		for loader, values := range s.Metrics.EpochValues {
			for name, value := range values {
				args = append(args, loader+"/"+name, value)
			}
		}
		s.Logger.Info("epoch end", args...)
	}
}
