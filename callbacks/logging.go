package callbacks

import (
	"log/slog"
	"sort"

	"github.com/tsawler/go-trainer/runner"
)

// Logger emits structured log records at stage and loader boundaries. It
// reads aggregated means, so register it after the metrics callback.
type Logger struct {
	runner.NopCallback

	logger *slog.Logger
}

// NewLogger creates a logging callback. A nil logger falls back to the
// default slog logger.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (c *Logger) OnStageStart(s *runner.RunState) error {
	c.logger.Info("stage start",
		"run_id", s.RunID,
		"stage", s.Stage,
		"n_epochs", s.Config.NEpochs)
	return nil
}

func (c *Logger) OnLoaderEnd(s *runner.RunState) error {
	values := s.Metrics.EpochValues[s.LoaderName]

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	args := []interface{}{
		"stage", s.Stage,
		"epoch", s.Epoch,
		"loader", s.LoaderName,
	}
	for _, name := range names {
		args = append(args, name, values[name])
	}

	c.logger.Info("loader end", args...)
	return nil
}

func (c *Logger) OnStageEnd(s *runner.RunState) error {
	args := []interface{}{
		"run_id", s.RunID,
		"stage", s.Stage,
		"step", s.Step,
	}
	if !runner.IsInferStage(s.Stage) {
		args = append(args,
			"best_"+s.Metrics.MainMetric(), s.Metrics.BestValue)
	}

	c.logger.Info("stage end", args...)
	return nil
}
