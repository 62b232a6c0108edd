package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsawler/go-trainer/tensor"
)

// Structural misconfiguration is fatal and aborts the run immediately.
var (
	// ErrMissingValidLoader is returned when a non-inference stage has no
	// loader under the configured validation name.
	ErrMissingValidLoader = errors.New("validation loader is not among the provided loaders")

	// ErrTrainLoaderForbidden is returned when an inference stage is given
	// a training split.
	ErrTrainLoaderForbidden = errors.New("no train loader may be passed for inference")
)

// checkRunLimit bounds epochs and batches during a smoke-test run.
const checkRunLimit = 3

// BatchPredictor is the model-specific seam of the loop: it normalizes raw
// loader items into named batches and runs one prediction.
type BatchPredictor interface {
	// NormalizeBatch converts a raw loader item into a named Batch.
	NormalizeBatch(raw interface{}) (Batch, error)

	// PredictBatch runs the model on one device-resident batch and returns
	// the named outputs.
	PredictBatch(state *RunState, batch Batch) (Batch, error)
}

// AsBatch is the generic normalization: the item must already be a Batch.
func AsBatch(raw interface{}) (Batch, error) {
	b, ok := raw.(Batch)
	if !ok {
		return nil, fmt.Errorf("expected a Batch, got %T", raw)
	}
	return b, nil
}

// Runner drives a model through stages, epochs, loaders and batches,
// dispatching lifecycle events to the experiment's callbacks. One Runner
// runs one experiment at a time on one goroutine.
type Runner struct {
	predictor BatchPredictor
	device    tensor.DeviceType

	experiment Experiment
	state      *RunState
	callbacks  []Callback

	checkRun bool
}

// New creates a runner around a batch predictor. Batches are moved to the
// given device before prediction.
func New(predictor BatchPredictor, device tensor.DeviceType) *Runner {
	return &Runner{
		predictor: predictor,
		device:    device,
	}
}

// State exposes the current run state, mainly for inspection after a run.
func (r *Runner) State() *RunState {
	return r.state
}

// Run executes every stage of the experiment in order. Stage state migrates
// forward, so stages are strictly sequential.
func (r *Runner) Run(experiment Experiment) error {
	return r.run(experiment, false)
}

// Check executes the experiment in smoke-test mode: every stage is
// truncated to a few epochs and every loader pass to a few batches.
func (r *Runner) Check(experiment Experiment) error {
	return r.run(experiment, true)
}

func (r *Runner) run(experiment Experiment, check bool) error {
	r.experiment = experiment
	r.checkRun = check

	for _, stage := range experiment.Stages() {
		if err := r.runStage(stage); err != nil {
			return fmt.Errorf("stage %q: %w", stage, err)
		}
	}
	return nil
}

// validateLoaders enforces the stage/loader structural invariants before
// any epoch executes.
func validateLoaders(stage string, loaders []NamedLoader) error {
	if !IsInferStage(stage) {
		return nil
	}
	for _, nl := range loaders {
		if IsTrainLoader(nl.Name) {
			return fmt.Errorf("loader %q: %w", nl.Name, ErrTrainLoaderForbidden)
		}
	}
	return nil
}

func validateValidLoader(state *RunState, loaders []NamedLoader) error {
	if IsInferStage(state.Stage) {
		return nil
	}
	for _, nl := range loaders {
		if nl.Name == state.Config.ValidLoader {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", state.Config.ValidLoader, ErrMissingValidLoader)
}

// IsInferStage reports whether a stage name denotes inference. Inference
// stages skip validation-loader checks and best-metric tracking.
func IsInferStage(stage string) bool {
	return strings.HasPrefix(stage, "infer")
}

// IsTrainLoader reports whether a loader name denotes a training split.
func IsTrainLoader(name string) bool {
	return strings.HasPrefix(name, "train")
}

func (r *Runner) runStage(stage string) error {
	loaders, err := r.experiment.GetLoaders(stage)
	if err != nil {
		return fmt.Errorf("get loaders: %v", err)
	}

	callbacks, err := r.experiment.GetCallbacks(stage)
	if err != nil {
		return fmt.Errorf("get callbacks: %v", err)
	}

	model, err := r.experiment.GetModel(stage)
	if err != nil {
		return fmt.Errorf("get model: %v", err)
	}

	stuff, err := r.experiment.GetModelStuff(model, stage)
	if err != nil {
		return fmt.Errorf("get model stuff: %v", err)
	}

	cfg, err := r.experiment.GetStateConfig(stage)
	if err != nil {
		return fmt.Errorf("get state config: %v", err)
	}

	var prev *Snapshot
	if r.state != nil {
		snap := r.state.Snapshot()
		prev = &snap
	}

	state, err := NewRunState(stage, cfg, prev)
	if err != nil {
		return err
	}
	state.Model = model
	state.Criterion = stuff.Criterion
	state.Optimizer = stuff.Optimizer
	state.Scheduler = stuff.Scheduler

	r.state = state
	r.callbacks = callbacks

	if err := validateLoaders(stage, loaders); err != nil {
		return err
	}
	if err := validateValidLoader(state, loaders); err != nil {
		return err
	}

	if err := r.fire(StageStart); err != nil {
		return err
	}

	for epoch := 0; epoch < state.Config.NEpochs; epoch++ {
		state.Epoch = epoch

		if err := r.fire(EpochStart); err != nil {
			return err
		}
		if err := r.runEpoch(loaders); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if err := r.fire(EpochEnd); err != nil {
			return err
		}

		if r.checkRun && epoch >= checkRunLimit {
			break
		}
		if state.EarlyStop {
			state.EarlyStop = false
			break
		}
	}

	return r.fire(StageEnd)
}

func (r *Runner) runEpoch(loaders []NamedLoader) error {
	for _, nl := range loaders {
		r.state.LoaderName = nl.Name
		r.state.LoaderLen = nl.Loader.Len()
		r.state.NeedBackward = IsTrainLoader(nl.Name)

		if r.state.NeedBackward {
			r.state.Model.Train()
		} else {
			r.state.Model.Eval()
		}

		if err := r.fire(LoaderStart); err != nil {
			return err
		}
		if err := r.runLoader(nl.Loader); err != nil {
			return fmt.Errorf("loader %q: %w", nl.Name, err)
		}
		if err := r.fire(LoaderEnd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runLoader(loader Loader) error {
	state := r.state
	state.BatchSize = loader.BatchSize()

	// Baseline the step counter on the first loader pass of a run.
	if state.Step == 0 {
		state.Step = state.Epoch * loader.Len() * state.BatchSize
	}

	state.Timer.Reset()
	state.Timer.Start("batch_time")
	state.Timer.Start("data_time")

	loader.Reset()

	for i := 0; ; i++ {
		raw, err := loader.Next()
		if err != nil {
			return fmt.Errorf("batch %d: %v", i, err)
		}
		if raw == nil {
			break
		}

		batch, err := r.batchToDevice(raw)
		if err != nil {
			return fmt.Errorf("batch %d: %v", i, err)
		}

		if err := state.Timer.Stop("data_time"); err != nil {
			return err
		}

		if err := r.fire(BatchStart); err != nil {
			return err
		}

		state.Timer.Start("model_time")
		if err := r.runBatch(batch); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		if err := state.Timer.Stop("model_time"); err != nil {
			return err
		}
		if err := state.Timer.Stop("batch_time"); err != nil {
			return err
		}

		if err := r.fire(BatchEnd); err != nil {
			return err
		}

		state.Timer.Reset()

		if r.checkRun && i >= checkRunLimit {
			break
		}

		state.Timer.Start("batch_time")
		state.Timer.Start("data_time")
	}
	return nil
}

func (r *Runner) runBatch(batch Batch) error {
	state := r.state
	state.Step += state.BatchSize
	state.Input = batch

	output, err := r.predictor.PredictBatch(state, batch)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	state.Output = output
	return nil
}

// batchToDevice normalizes the raw loader item and moves every
// device-movable field to the runner's device. Other fields pass through.
func (r *Runner) batchToDevice(raw interface{}) (Batch, error) {
	batch, err := r.predictor.NormalizeBatch(raw)
	if err != nil {
		return nil, err
	}

	moved := make(Batch, len(batch))
	for key, value := range batch {
		if mover, ok := value.(DeviceMover); ok {
			t, err := mover.ToDevice(r.device)
			if err != nil {
				return nil, fmt.Errorf("field %q: %v", key, err)
			}
			moved[key] = t
		} else {
			moved[key] = value
		}
	}
	return moved, nil
}

func (r *Runner) fire(e Event) error {
	return fireEvent(e, r.state, r.callbacks)
}
