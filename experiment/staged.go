package experiment

import (
	"fmt"

	"github.com/tsawler/go-trainer/runner"
)

// StagedExperiment implements runner.Experiment for a multi-stage config.
// The model is shared across stages so trained weights carry forward;
// loaders, callbacks and model stuff are attached per stage, with a default
// fallback for stages that have no specific attachment.
type StagedExperiment struct {
	config *Config
	model  runner.Model

	loaders   map[string][]runner.NamedLoader
	callbacks map[string][]runner.Callback
	stuff     map[string]runner.ModelStuff

	defaultLoaders   []runner.NamedLoader
	defaultCallbacks []runner.Callback
	defaultStuff     runner.ModelStuff
}

// NewStagedExperiment creates an experiment over a validated config.
func NewStagedExperiment(cfg *Config, model runner.Model) (*StagedExperiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("experiment requires a model")
	}

	return &StagedExperiment{
		config:    cfg,
		model:     model,
		loaders:   make(map[string][]runner.NamedLoader),
		callbacks: make(map[string][]runner.Callback),
		stuff:     make(map[string]runner.ModelStuff),
	}, nil
}

// SetLoaders attaches the loader set for every stage.
func (e *StagedExperiment) SetLoaders(loaders []runner.NamedLoader) {
	e.defaultLoaders = loaders
}

// SetStageLoaders attaches a stage-specific loader set.
func (e *StagedExperiment) SetStageLoaders(stage string, loaders []runner.NamedLoader) {
	e.loaders[stage] = loaders
}

// SetCallbacks attaches the observer list for every stage.
func (e *StagedExperiment) SetCallbacks(callbacks []runner.Callback) {
	e.defaultCallbacks = callbacks
}

// SetStageCallbacks attaches a stage-specific observer list.
func (e *StagedExperiment) SetStageCallbacks(stage string, callbacks []runner.Callback) {
	e.callbacks[stage] = callbacks
}

// SetModelStuff attaches the criterion/optimizer/scheduler for every stage.
func (e *StagedExperiment) SetModelStuff(stuff runner.ModelStuff) {
	e.defaultStuff = stuff
}

// SetStageModelStuff attaches stage-specific criterion/optimizer/scheduler.
func (e *StagedExperiment) SetStageModelStuff(stage string, stuff runner.ModelStuff) {
	e.stuff[stage] = stuff
}

// Stages returns the configured stage names in order.
func (e *StagedExperiment) Stages() []string {
	names := make([]string, len(e.config.Stages))
	for i, stage := range e.config.Stages {
		names[i] = stage.Name
	}
	return names
}

func (e *StagedExperiment) stageConfig(stage string) (StageConfig, error) {
	for _, sc := range e.config.Stages {
		if sc.Name == stage {
			return sc, nil
		}
	}
	return StageConfig{}, fmt.Errorf("unknown stage %q", stage)
}

// GetLoaders returns the stage's loaders, or the default set.
func (e *StagedExperiment) GetLoaders(stage string) ([]runner.NamedLoader, error) {
	if _, err := e.stageConfig(stage); err != nil {
		return nil, err
	}

	if loaders, ok := e.loaders[stage]; ok {
		return loaders, nil
	}
	if e.defaultLoaders == nil {
		return nil, fmt.Errorf("stage %q has no loaders", stage)
	}
	return e.defaultLoaders, nil
}

// GetCallbacks returns the stage's observers, or the default list.
func (e *StagedExperiment) GetCallbacks(stage string) ([]runner.Callback, error) {
	if _, err := e.stageConfig(stage); err != nil {
		return nil, err
	}

	if callbacks, ok := e.callbacks[stage]; ok {
		return callbacks, nil
	}
	return e.defaultCallbacks, nil
}

// GetModel returns the shared model.
func (e *StagedExperiment) GetModel(stage string) (runner.Model, error) {
	if _, err := e.stageConfig(stage); err != nil {
		return nil, err
	}
	return e.model, nil
}

// GetModelStuff returns the stage's criterion/optimizer/scheduler.
func (e *StagedExperiment) GetModelStuff(_ runner.Model, stage string) (runner.ModelStuff, error) {
	if _, err := e.stageConfig(stage); err != nil {
		return runner.ModelStuff{}, err
	}

	if stuff, ok := e.stuff[stage]; ok {
		return stuff, nil
	}
	return e.defaultStuff, nil
}

// GetStateConfig returns the stage's loop options with defaults applied.
func (e *StagedExperiment) GetStateConfig(stage string) (runner.StateConfig, error) {
	sc, err := e.stageConfig(stage)
	if err != nil {
		return runner.StateConfig{}, err
	}
	return sc.StateConfig(), nil
}
