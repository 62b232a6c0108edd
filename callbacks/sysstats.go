package callbacks

import (
	"log/slog"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/tsawler/go-trainer/runner"
)

// SystemStats logs host memory and CPU usage at epoch boundaries.
// Collection failures are logged and never abort the run.
type SystemStats struct {
	runner.NopCallback

	logger *slog.Logger
}

// NewSystemStats creates a system statistics callback. A nil logger falls
// back to the default slog logger.
func NewSystemStats(logger *slog.Logger) *SystemStats {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemStats{logger: logger}
}

func (c *SystemStats) OnEpochEnd(s *runner.RunState) error {
	args := []interface{}{
		"stage", s.Stage,
		"epoch", s.Epoch,
	}

	v, err := mem.VirtualMemory()
	if err != nil {
		c.logger.Warn("failed to collect memory stats", "error", err)
	} else {
		args = append(args,
			"mem_used_mb", v.Used/1024/1024,
			"mem_percent", v.UsedPercent)
	}

	percentages, err := cpu.Percent(0, false)
	if err != nil {
		c.logger.Warn("failed to collect cpu stats", "error", err)
	} else if len(percentages) > 0 {
		args = append(args, "cpu_percent", percentages[0])
	}

	c.logger.Info("system stats", args...)
	return nil
}
