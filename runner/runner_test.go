package runner

import (
	"errors"
	"testing"

	"github.com/tsawler/go-trainer/tensor"
)

// fakeModel records mode switches and echoes its input.
type fakeModel struct {
	training bool
}

func (m *fakeModel) Forward(input interface{}) (interface{}, error) {
	return input, nil
}

func (m *fakeModel) Train() { m.training = true }
func (m *fakeModel) Eval()  { m.training = false }

// fakeLoader yields a fixed number of single-key batches.
type fakeLoader struct {
	batches   int
	batchSize int
	pos       int
}

func newFakeLoader(batches, batchSize int) *fakeLoader {
	return &fakeLoader{batches: batches, batchSize: batchSize}
}

func (l *fakeLoader) Len() int       { return l.batches }
func (l *fakeLoader) BatchSize() int { return l.batchSize }
func (l *fakeLoader) Reset()         { l.pos = 0 }

func (l *fakeLoader) Next() (interface{}, error) {
	if l.pos >= l.batches {
		return nil, nil
	}
	l.pos++
	return Batch{"features": tensor.FromScalar(float64(l.pos))}, nil
}

// recorder collects the event sequence and per-event observations.
type recorder struct {
	NopCallback
	events      []string
	stageEpochs []int
	steps       []int
}

func (r *recorder) record(name string, s *RunState) error {
	r.events = append(r.events, name)
	r.steps = append(r.steps, s.Step)
	return nil
}

func (r *recorder) OnStageStart(s *RunState) error {
	r.stageEpochs = append(r.stageEpochs, s.Epoch)
	return r.record("stage_start", s)
}
func (r *recorder) OnEpochStart(s *RunState) error  { return r.record("epoch_start", s) }
func (r *recorder) OnLoaderStart(s *RunState) error { return r.record("loader_start", s) }
func (r *recorder) OnBatchStart(s *RunState) error  { return r.record("batch_start", s) }
func (r *recorder) OnBatchEnd(s *RunState) error    { return r.record("batch_end", s) }
func (r *recorder) OnLoaderEnd(s *RunState) error   { return r.record("loader_end", s) }
func (r *recorder) OnEpochEnd(s *RunState) error    { return r.record("epoch_end", s) }
func (r *recorder) OnStageEnd(s *RunState) error    { return r.record("stage_end", s) }

// multiExperiment serves the same loaders and callbacks for several stages.
type multiExperiment struct {
	stages    []string
	loaders   []NamedLoader
	callbacks []Callback
	config    StateConfig
	model     Model
}

func (e *multiExperiment) Stages() []string { return e.stages }

func (e *multiExperiment) GetLoaders(string) ([]NamedLoader, error) {
	return e.loaders, nil
}

func (e *multiExperiment) GetCallbacks(string) ([]Callback, error) {
	return e.callbacks, nil
}

func (e *multiExperiment) GetModel(string) (Model, error) {
	if e.model != nil {
		return e.model, nil
	}
	return &fakeModel{}, nil
}

func (e *multiExperiment) GetModelStuff(Model, string) (ModelStuff, error) {
	return ModelStuff{}, nil
}

func (e *multiExperiment) GetStateConfig(string) (StateConfig, error) {
	return e.config, nil
}

func trainValidLoaders(batches, batchSize int) []NamedLoader {
	return []NamedLoader{
		{Name: "train", Loader: newFakeLoader(batches, batchSize)},
		{Name: "valid", Loader: newFakeLoader(batches, batchSize)},
	}
}

// TestEventOrdering tests the strict nesting of lifecycle events
func TestEventOrdering(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultStateConfig()
	cfg.NEpochs = 2

	exp := &multiExperiment{
		stages:    []string{"train"},
		loaders:   trainValidLoaders(2, 4),
		callbacks: []Callback{rec},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	loaderPass := []string{"loader_start", "batch_start", "batch_end", "batch_start", "batch_end", "loader_end"}
	epochPass := append([]string{"epoch_start"}, append(append([]string{}, loaderPass...), loaderPass...)...)
	epochPass = append(epochPass, "epoch_end")

	expected := []string{"stage_start"}
	expected = append(expected, epochPass...)
	expected = append(expected, epochPass...)
	expected = append(expected, "stage_end")

	if len(rec.events) != len(expected) {
		t.Fatalf("Expected %d events, got %d: %v", len(expected), len(rec.events), rec.events)
	}
	for i, name := range expected {
		if rec.events[i] != name {
			t.Fatalf("Event %d: expected %s, got %s (full: %v)", i, name, rec.events[i], rec.events)
		}
	}
}

// TestMonotonicStep tests that the step counter never decreases
func TestMonotonicStep(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultStateConfig()
	cfg.NEpochs = 2

	exp := &multiExperiment{
		stages:    []string{"train_head", "train_full"},
		loaders:   trainValidLoaders(3, 4),
		callbacks: []Callback{rec},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := 1; i < len(rec.steps); i++ {
		if rec.steps[i] < rec.steps[i-1] {
			t.Fatalf("Step decreased at event %d: %d -> %d", i, rec.steps[i-1], rec.steps[i])
		}
	}

	// Two stages x two epochs x two loaders x three batches of four samples.
	final := r.State().Step
	if final < 2*2*2*3*4 {
		t.Errorf("Expected final step >= 96, got %d", final)
	}
}

// TestEpochMigration tests the epoch hand-off between stages
func TestEpochMigration(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultStateConfig()
	cfg.NEpochs = 3

	exp := &multiExperiment{
		stages:    []string{"train_warmup", "train_main"},
		loaders:   trainValidLoaders(1, 2),
		callbacks: []Callback{rec},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(rec.stageEpochs) != 2 {
		t.Fatalf("Expected 2 stage starts, got %d", len(rec.stageEpochs))
	}
	if rec.stageEpochs[0] != 0 {
		t.Errorf("First stage: expected epoch 0, got %d", rec.stageEpochs[0])
	}
	// The first stage finished at epoch 2, so the second starts at 3.
	if rec.stageEpochs[1] != 3 {
		t.Errorf("Second stage: expected migrated epoch 3, got %d", rec.stageEpochs[1])
	}
}

// TestMissingValidLoader tests the validation-loader precondition
func TestMissingValidLoader(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultStateConfig()
	cfg.NEpochs = 2

	exp := &multiExperiment{
		stages: []string{"train"},
		loaders: []NamedLoader{
			{Name: "train", Loader: newFakeLoader(2, 4)},
			{Name: "test", Loader: newFakeLoader(2, 4)},
		},
		callbacks: []Callback{rec},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	err := r.Run(exp)
	if !errors.Is(err, ErrMissingValidLoader) {
		t.Fatalf("Expected ErrMissingValidLoader, got %v", err)
	}

	for _, name := range rec.events {
		if name == "epoch_start" {
			t.Fatal("No epoch should have executed")
		}
	}
}

// TestInferStageRejectsTrainLoader tests the inference-stage precondition
func TestInferStageRejectsTrainLoader(t *testing.T) {
	cfg := DefaultStateConfig()

	exp := &multiExperiment{
		stages: []string{"infer"},
		loaders: []NamedLoader{
			{Name: "train", Loader: newFakeLoader(2, 4)},
		},
		config: cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); !errors.Is(err, ErrTrainLoaderForbidden) {
		t.Fatalf("Expected ErrTrainLoaderForbidden, got %v", err)
	}
}

// TestInferStageRuns tests that inference stages accept non-train loaders
func TestInferStageRuns(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultStateConfig()

	exp := &multiExperiment{
		stages: []string{"infer"},
		loaders: []NamedLoader{
			{Name: "test", Loader: newFakeLoader(2, 4)},
		},
		callbacks: []Callback{rec},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	batches := 0
	for _, name := range rec.events {
		if name == "batch_end" {
			batches++
		}
	}
	if batches != 2 {
		t.Errorf("Expected 2 batches, got %d", batches)
	}
}

// earlyStopper sets the early-stop flag at the end of a chosen epoch.
type earlyStopper struct {
	NopCallback
	atEpoch int
}

func (c *earlyStopper) OnEpochEnd(s *RunState) error {
	if s.Epoch == c.atEpoch {
		s.EarlyStop = true
	}
	return nil
}

// TestEarlyStop tests that the early-stop flag ends the stage and is cleared
func TestEarlyStop(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultStateConfig()
	cfg.NEpochs = 5

	exp := &multiExperiment{
		stages:    []string{"train"},
		loaders:   trainValidLoaders(1, 2),
		callbacks: []Callback{&earlyStopper{atEpoch: 0}, rec},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	epochs := 0
	for _, name := range rec.events {
		if name == "epoch_end" {
			epochs++
		}
	}
	if epochs != 1 {
		t.Errorf("Expected exactly 1 epoch, got %d", epochs)
	}
	if r.State().EarlyStop {
		t.Error("Expected EarlyStop to be cleared after the stage")
	}
}

// TestCheckRunTruncation tests smoke-test truncation of epochs and batches
func TestCheckRunTruncation(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultStateConfig()
	cfg.NEpochs = 10

	exp := &multiExperiment{
		stages: []string{"train"},
		loaders: []NamedLoader{
			{Name: "train", Loader: newFakeLoader(10, 2)},
			{Name: "valid", Loader: newFakeLoader(10, 2)},
		},
		callbacks: []Callback{rec},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Check(exp); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	epochs := 0
	batches := 0
	for _, name := range rec.events {
		switch name {
		case "epoch_end":
			epochs++
		case "batch_end":
			batches++
		}
	}
	if epochs != 4 {
		t.Errorf("Expected 4 truncated epochs, got %d", epochs)
	}
	// Four batches per loader pass, two loaders per epoch.
	if batches != 4*2*4 {
		t.Errorf("Expected %d truncated batches, got %d", 4*2*4, batches)
	}
}

// failingCallback aborts the run from a chosen event.
type failingCallback struct {
	NopCallback
}

func (failingCallback) OnBatchEnd(*RunState) error {
	return errors.New("observer blew up")
}

// TestCallbackErrorAborts tests fail-fast propagation of observer errors
func TestCallbackErrorAborts(t *testing.T) {
	cfg := DefaultStateConfig()

	exp := &multiExperiment{
		stages:    []string{"train"},
		loaders:   trainValidLoaders(3, 2),
		callbacks: []Callback{failingCallback{}},
		config:    cfg,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); err == nil {
		t.Fatal("Expected the observer error to abort the run")
	}
}

// TestTrainEvalModeSwitch tests train/eval mode per loader split
func TestTrainEvalModeSwitch(t *testing.T) {
	model := &fakeModel{}
	rec := &modeRecorder{model: model}
	cfg := DefaultStateConfig()

	exp := &multiExperiment{
		stages:    []string{"train"},
		loaders:   trainValidLoaders(1, 2),
		callbacks: []Callback{rec},
		config:    cfg,
		model:     model,
	}

	r := New(NewSupervisedPredictor(), tensor.CPU)
	if err := r.Run(exp); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(rec.modes) != 2 {
		t.Fatalf("Expected 2 loader passes, got %d", len(rec.modes))
	}
	if !rec.modes[0] {
		t.Error("Expected training mode for the train loader")
	}
	if rec.modes[1] {
		t.Error("Expected eval mode for the valid loader")
	}
}

// modeRecorder notes the model mode at each loader start.
type modeRecorder struct {
	NopCallback
	model *fakeModel
	modes []bool
}

func (c *modeRecorder) OnLoaderStart(*RunState) error {
	c.modes = append(c.modes, c.model.training)
	return nil
}
