package schedule

import (
	"math"
)

// Scheduler computes the learning rate for a given epoch and step. Epoch
// and step come from the run state; baseLR is the optimizer's initial rate.
type Scheduler interface {
	// LR returns the learning rate for the current epoch/step.
	LR(epoch int, step int, baseLR float64) float64

	// Name returns the scheduler name for logging.
	Name() string
}

// StepLR reduces the learning rate by a factor every StepSize epochs.
type StepLR struct {
	StepSize int
	Gamma    float64
}

// NewStepLR creates a step learning rate scheduler.
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma}
}

func (s *StepLR) LR(epoch int, step int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLR) Name() string {
	return "StepLR"
}

// ExponentialLR decays the learning rate by Gamma every epoch.
type ExponentialLR struct {
	Gamma float64
}

// NewExponentialLR creates an exponential learning rate scheduler.
func NewExponentialLR(gamma float64) *ExponentialLR {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLR{Gamma: gamma}
}

func (s *ExponentialLR) LR(epoch int, step int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialLR) Name() string {
	return "ExponentialLR"
}

// CosineAnnealingLR anneals the learning rate along a cosine curve from
// baseLR down to EtaMin over TMax epochs.
type CosineAnnealingLR struct {
	TMax   int
	EtaMin float64
}

// NewCosineAnnealingLR creates a cosine annealing scheduler.
func NewCosineAnnealingLR(tMax int, etaMin float64) *CosineAnnealingLR {
	if tMax <= 0 {
		tMax = 100
	}
	if etaMin < 0 {
		etaMin = 0
	}
	return &CosineAnnealingLR{TMax: tMax, EtaMin: etaMin}
}

func (s *CosineAnnealingLR) LR(epoch int, step int, baseLR float64) float64 {
	if epoch >= s.TMax {
		return s.EtaMin
	}

	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(s.TMax)))/2
}

func (s *CosineAnnealingLR) Name() string {
	return "CosineAnnealingLR"
}

// ReduceLROnPlateau reduces the learning rate when a tracked metric stops
// improving. Unlike the pure schedulers it keeps state and is driven by
// Step with the epoch's metric value.
type ReduceLROnPlateau struct {
	Factor    float64
	Patience  int
	Threshold float64
	Minimize  bool

	bestMetric  float64
	badEpochs   int
	currentLR   float64
	initialized bool
}

// NewReduceLROnPlateau creates a plateau-based scheduler.
func NewReduceLROnPlateau(factor float64, patience int, threshold float64, minimize bool) *ReduceLROnPlateau {
	if factor <= 0 || factor >= 1 {
		factor = 0.1
	}
	if patience <= 0 {
		patience = 10
	}
	if threshold < 0 {
		threshold = 1e-4
	}
	return &ReduceLROnPlateau{
		Factor:    factor,
		Patience:  patience,
		Threshold: threshold,
		Minimize:  minimize,
	}
}

// Step feeds one epoch's metric value and returns the learning rate to use
// next. Called once per epoch.
func (s *ReduceLROnPlateau) Step(metric float64, currentLR float64) float64 {
	if !s.initialized {
		s.bestMetric = metric
		s.currentLR = currentLR
		s.initialized = true
		return currentLR
	}

	var improved bool
	if s.Minimize {
		improved = metric < s.bestMetric-s.Threshold
	} else {
		improved = metric > s.bestMetric+s.Threshold
	}

	if improved {
		s.bestMetric = metric
		s.badEpochs = 0
	} else {
		s.badEpochs++
		if s.badEpochs >= s.Patience {
			s.currentLR *= s.Factor
			s.badEpochs = 0
		}
	}

	return s.currentLR
}

func (s *ReduceLROnPlateau) LR(epoch int, step int, baseLR float64) float64 {
	if s.initialized {
		return s.currentLR
	}
	return baseLR
}

func (s *ReduceLROnPlateau) Name() string {
	return "ReduceLROnPlateau"
}

// ConstantLR keeps the learning rate fixed.
type ConstantLR struct{}

func (s *ConstantLR) LR(epoch int, step int, baseLR float64) float64 {
	return baseLR
}

func (s *ConstantLR) Name() string {
	return "ConstantLR"
}
