package callbacks

import (
	"github.com/tsawler/go-trainer/runner"
)

// EarlyStopping requests the stage to stop when the main metric has not
// improved for Patience epochs. It reads the aggregated epoch values, so
// register it after the metrics callback.
type EarlyStopping struct {
	runner.NopCallback

	// Patience is the number of epochs without improvement to tolerate.
	Patience int

	// MinDelta is the minimum change that counts as an improvement.
	MinDelta float64

	best        float64
	badEpochs   int
	initialized bool
}

// NewEarlyStopping creates an early stopping callback.
func NewEarlyStopping(patience int, minDelta float64) *EarlyStopping {
	if patience <= 0 {
		patience = 5
	}
	if minDelta < 0 {
		minDelta = 0
	}
	return &EarlyStopping{Patience: patience, MinDelta: minDelta}
}

func (c *EarlyStopping) OnStageStart(s *runner.RunState) error {
	c.badEpochs = 0
	c.initialized = false
	return nil
}

func (c *EarlyStopping) OnEpochEnd(s *runner.RunState) error {
	if runner.IsInferStage(s.Stage) {
		return nil
	}

	value, err := s.Metrics.MainMetricValue()
	if err != nil {
		return err
	}

	if !c.initialized {
		c.best = value
		c.initialized = true
		return nil
	}

	var improved bool
	if s.Metrics.Minimize() {
		improved = value < c.best-c.MinDelta
	} else {
		improved = value > c.best+c.MinDelta
	}

	if improved {
		c.best = value
		c.badEpochs = 0
		return nil
	}

	c.badEpochs++
	if c.badEpochs >= c.Patience {
		s.Logger.Info("early stopping",
			"stage", s.Stage,
			"epoch", s.Epoch,
			"patience", c.Patience,
			"best_"+s.Metrics.MainMetric(), c.best)
		s.EarlyStop = true
	}
	return nil
}
