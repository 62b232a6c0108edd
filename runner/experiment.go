package runner

import (
	"fmt"
)

// ModelStuff bundles the stage artifacts that the loop carries but never
// interprets: criterion, optimizer and scheduler construction is the
// experiment's concern.
type ModelStuff struct {
	Criterion interface{}
	Optimizer interface{}
	Scheduler interface{}
}

// Experiment is the configuration/assembly collaborator a Runner consumes:
// it decides which stages exist and what loaders, callbacks and model
// artifacts each stage gets.
type Experiment interface {
	// Stages returns the ordered stage names of the run.
	Stages() []string

	// GetLoaders returns the ordered loader set for a stage.
	GetLoaders(stage string) ([]NamedLoader, error)

	// GetCallbacks returns the ordered observer list for a stage.
	GetCallbacks(stage string) ([]Callback, error)

	// GetModel returns the model to drive through a stage.
	GetModel(stage string) (Model, error)

	// GetModelStuff returns criterion/optimizer/scheduler for the stage.
	GetModelStuff(model Model, stage string) (ModelStuff, error)

	// GetStateConfig returns the recognized stage options.
	GetStateConfig(stage string) (StateConfig, error)
}

// SimpleExperiment is a single-stage experiment assembled from parts already
// in hand. It backs the SupervisedRunner Train and Infer conveniences.
type SimpleExperiment struct {
	Stage     string
	Model     Model
	Loaders   []NamedLoader
	Callbacks []Callback
	Stuff     ModelStuff
	Config    StateConfig
}

// Stages returns the experiment's single stage.
func (e *SimpleExperiment) Stages() []string {
	return []string{e.Stage}
}

func (e *SimpleExperiment) checkStage(stage string) error {
	if stage != e.Stage {
		return fmt.Errorf("unknown stage %q, experiment has %q", stage, e.Stage)
	}
	return nil
}

// GetLoaders returns the configured loader set.
func (e *SimpleExperiment) GetLoaders(stage string) ([]NamedLoader, error) {
	if err := e.checkStage(stage); err != nil {
		return nil, err
	}
	return e.Loaders, nil
}

// GetCallbacks returns the configured observers.
func (e *SimpleExperiment) GetCallbacks(stage string) ([]Callback, error) {
	if err := e.checkStage(stage); err != nil {
		return nil, err
	}
	return e.Callbacks, nil
}

// GetModel returns the configured model.
func (e *SimpleExperiment) GetModel(stage string) (Model, error) {
	if err := e.checkStage(stage); err != nil {
		return nil, err
	}
	if e.Model == nil {
		return nil, fmt.Errorf("stage %q has no model", stage)
	}
	return e.Model, nil
}

// GetModelStuff returns the configured criterion/optimizer/scheduler.
func (e *SimpleExperiment) GetModelStuff(_ Model, stage string) (ModelStuff, error) {
	if err := e.checkStage(stage); err != nil {
		return ModelStuff{}, err
	}
	return e.Stuff, nil
}

// GetStateConfig returns the configured stage options.
func (e *SimpleExperiment) GetStateConfig(stage string) (StateConfig, error) {
	if err := e.checkStage(stage); err != nil {
		return StateConfig{}, err
	}
	return e.Config, nil
}
