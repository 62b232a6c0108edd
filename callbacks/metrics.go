// Package callbacks provides the stock observers for training runs: metric
// accumulation, logging, progress output, checkpoints, early stopping,
// learning rate scheduling and system statistics.
package callbacks

import (
	"github.com/tsawler/go-trainer/runner"
)

// MetricsCallback drives the metric manager from lifecycle events. It should
// be registered before any callback that reads aggregated metrics.
type MetricsCallback struct {
	runner.NopCallback

	// RecordTimers folds the loop timer intervals into the batch metrics
	// under a _timers/ prefix.
	RecordTimers bool
}

// NewMetricsCallback creates the metric accumulation callback.
func NewMetricsCallback() *MetricsCallback {
	return &MetricsCallback{}
}

func (c *MetricsCallback) OnEpochStart(s *runner.RunState) error {
	s.Metrics.BeginEpoch()
	return nil
}

func (c *MetricsCallback) OnLoaderStart(s *runner.RunState) error {
	s.Metrics.BeginLoader(s.LoaderName)
	return nil
}

func (c *MetricsCallback) OnBatchStart(s *runner.RunState) error {
	s.Metrics.BeginBatch()
	return nil
}

func (c *MetricsCallback) OnBatchEnd(s *runner.RunState) error {
	if c.RecordTimers {
		for name, d := range s.Timer.Elapsed {
			if err := s.Metrics.AddValue("_timers/"+name, d.Seconds()); err != nil {
				return err
			}
		}
	}
	return s.Metrics.EndBatch()
}

func (c *MetricsCallback) OnLoaderEnd(s *runner.RunState) error {
	s.Metrics.EndLoader()
	return nil
}

func (c *MetricsCallback) OnEpochEnd(s *runner.RunState) error {
	if runner.IsInferStage(s.Stage) {
		return nil
	}
	return s.Metrics.EndEpochTrain()
}
