package callbacks

import (
	"github.com/tsawler/go-trainer/runner"
	"github.com/tsawler/go-trainer/schedule"
)

// LRSettable is implemented by optimizers whose learning rate can be updated
// between epochs.
type LRSettable interface {
	SetLR(lr float64)
}

// SchedulerCallback updates the optimizer's learning rate after every
// training epoch according to a schedule. Plateau schedulers are driven by
// the epoch's main metric; register this after the metrics callback.
type SchedulerCallback struct {
	runner.NopCallback

	// Scheduler computes the next learning rate. When nil, the scheduler
	// attached to the run state is used if it implements schedule.Scheduler.
	Scheduler schedule.Scheduler

	// BaseLR is the optimizer's initial learning rate.
	BaseLR float64

	currentLR float64
}

// NewSchedulerCallback creates a learning rate scheduling callback.
func NewSchedulerCallback(scheduler schedule.Scheduler, baseLR float64) *SchedulerCallback {
	return &SchedulerCallback{Scheduler: scheduler, BaseLR: baseLR}
}

// CurrentLR returns the most recently applied learning rate.
func (c *SchedulerCallback) CurrentLR() float64 {
	return c.currentLR
}

func (c *SchedulerCallback) OnStageStart(s *runner.RunState) error {
	c.currentLR = c.BaseLR
	return nil
}

func (c *SchedulerCallback) OnEpochEnd(s *runner.RunState) error {
	if runner.IsInferStage(s.Stage) {
		return nil
	}

	scheduler := c.Scheduler
	if scheduler == nil {
		attached, ok := s.Scheduler.(schedule.Scheduler)
		if !ok {
			return nil
		}
		scheduler = attached
	}

	var lr float64
	if plateau, ok := scheduler.(*schedule.ReduceLROnPlateau); ok {
		metric, err := s.Metrics.MainMetricValue()
		if err != nil {
			return err
		}
		lr = plateau.Step(metric, c.currentLR)
	} else {
		lr = scheduler.LR(s.Epoch, s.Step, c.BaseLR)
	}

	if lr != c.currentLR {
		s.Logger.Info("learning rate updated",
			"stage", s.Stage,
			"epoch", s.Epoch,
			"scheduler", scheduler.Name(),
			"lr", lr)
	}
	c.currentLR = lr

	if settable, ok := s.Optimizer.(LRSettable); ok {
		settable.SetLR(lr)
	}
	return nil
}
