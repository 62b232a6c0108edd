package runner

import (
	"fmt"

	"github.com/tsawler/go-trainer/tensor"
)

// Default batch key names for supervised runs.
const (
	DefaultInputKey  = "features"
	DefaultOutputKey = "logits"
	DefaultTargetKey = "targets"
)

// SupervisedPredictor runs the model on a single input field and wraps the
// result under a single output field. Pair-shaped loader items are
// normalized into named batches first.
type SupervisedPredictor struct {
	InputKey  string
	OutputKey string
	TargetKey string
}

// NewSupervisedPredictor creates a predictor with the default key names.
func NewSupervisedPredictor() *SupervisedPredictor {
	return &SupervisedPredictor{
		InputKey:  DefaultInputKey,
		OutputKey: DefaultOutputKey,
		TargetKey: DefaultTargetKey,
	}
}

// NormalizeBatch maps a (inputs, targets) pair onto the configured keys;
// anything else must already be a named Batch.
func (p *SupervisedPredictor) NormalizeBatch(raw interface{}) (Batch, error) {
	switch v := raw.(type) {
	case Pair:
		return Batch{p.InputKey: v.Inputs, p.TargetKey: v.Targets}, nil
	case *Pair:
		return Batch{p.InputKey: v.Inputs, p.TargetKey: v.Targets}, nil
	default:
		return AsBatch(raw)
	}
}

// PredictBatch invokes the model forward pass on the input field.
func (p *SupervisedPredictor) PredictBatch(state *RunState, batch Batch) (Batch, error) {
	input, ok := batch[p.InputKey]
	if !ok {
		return nil, fmt.Errorf("batch has no %q field", p.InputKey)
	}

	output, err := state.Model.Forward(input)
	if err != nil {
		return nil, fmt.Errorf("forward pass failed: %v", err)
	}

	return Batch{p.OutputKey: output}, nil
}

// SupervisedRunner wraps Runner with the supervised predictor and one-call
// Train and Infer entry points.
type SupervisedRunner struct {
	*Runner
	predictor *SupervisedPredictor
}

// NewSupervisedRunner creates a supervised runner for the given device with
// default batch keys.
func NewSupervisedRunner(device tensor.DeviceType) *SupervisedRunner {
	predictor := NewSupervisedPredictor()
	return &SupervisedRunner{
		Runner:    New(predictor, device),
		predictor: predictor,
	}
}

// SetKeys overrides the batch key names used for prediction.
func (r *SupervisedRunner) SetKeys(inputKey, outputKey, targetKey string) {
	r.predictor.InputKey = inputKey
	r.predictor.OutputKey = outputKey
	r.predictor.TargetKey = targetKey
}

// TrainOptions configures a one-stage supervised training run.
type TrainOptions struct {
	Model     Model
	Criterion interface{}
	Optimizer interface{}
	Scheduler interface{}
	Loaders   []NamedLoader
	Callbacks []Callback

	NEpochs        int
	ValidLoader    string
	MainMetric     string
	MinimizeMetric *bool
	Verbose        bool

	// Check truncates the run for a quick smoke test.
	Check bool
}

// Train assembles a single "train" stage experiment and runs it.
func (r *SupervisedRunner) Train(opts TrainOptions) error {
	cfg := DefaultStateConfig()
	if opts.NEpochs > 0 {
		cfg.NEpochs = opts.NEpochs
	}
	if opts.ValidLoader != "" {
		cfg.ValidLoader = opts.ValidLoader
	}
	if opts.MainMetric != "" {
		cfg.MainMetric = opts.MainMetric
	}
	if opts.MinimizeMetric != nil {
		cfg.MinimizeMetric = *opts.MinimizeMetric
	}
	cfg.Verbose = opts.Verbose

	experiment := &SimpleExperiment{
		Stage:     "train",
		Model:     opts.Model,
		Loaders:   opts.Loaders,
		Callbacks: opts.Callbacks,
		Stuff: ModelStuff{
			Criterion: opts.Criterion,
			Optimizer: opts.Optimizer,
			Scheduler: opts.Scheduler,
		},
		Config: cfg,
	}

	if opts.Check {
		return r.Check(experiment)
	}
	return r.Run(experiment)
}

// InferOptions configures a one-stage inference run.
type InferOptions struct {
	Model     Model
	Loaders   []NamedLoader
	Callbacks []Callback
	Verbose   bool
	Check     bool
}

// Infer assembles a single "infer" stage experiment and runs it. No loader
// may denote a training split.
func (r *SupervisedRunner) Infer(opts InferOptions) error {
	cfg := DefaultStateConfig()
	cfg.Verbose = opts.Verbose

	experiment := &SimpleExperiment{
		Stage:     "infer",
		Model:     opts.Model,
		Loaders:   opts.Loaders,
		Callbacks: opts.Callbacks,
		Config:    cfg,
	}

	if opts.Check {
		return r.Check(experiment)
	}
	return r.Run(experiment)
}
