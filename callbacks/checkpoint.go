package callbacks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tsawler/go-trainer/runner"
)

// Checkpoint is the on-disk record of one finished epoch.
type Checkpoint struct {
	RunID       string                        `json:"run_id"`
	Stage       string                        `json:"stage"`
	Epoch       int                           `json:"epoch"`
	Step        int                           `json:"step"`
	EpochValues map[string]map[string]float64 `json:"epoch_values"`
	ValidValues map[string]float64            `json:"valid_values,omitempty"`
	BestValue   float64                       `json:"best_value"`
	IsBest      bool                          `json:"is_best"`
	SavedAt     time.Time                     `json:"saved_at"`
}

// Checkpointer writes a JSON checkpoint after every training epoch: last.json
// always, best.json when the epoch improved the main metric. Inference
// stages are skipped. Register it after the metrics callback.
type Checkpointer struct {
	runner.NopCallback

	// Dir is the checkpoint directory, created on first save.
	Dir string
}

// NewCheckpointer creates a checkpointing callback.
func NewCheckpointer(dir string) *Checkpointer {
	return &Checkpointer{Dir: dir}
}

func (c *Checkpointer) OnEpochEnd(s *runner.RunState) error {
	if runner.IsInferStage(s.Stage) {
		return nil
	}

	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %v", err)
	}

	ckpt := Checkpoint{
		RunID:       s.RunID,
		Stage:       s.Stage,
		Epoch:       s.Epoch,
		Step:        s.Step,
		EpochValues: s.Metrics.EpochValues,
		ValidValues: s.Metrics.ValidValues,
		BestValue:   s.Metrics.BestValue,
		IsBest:      s.Metrics.IsBest,
		SavedAt:     time.Now(),
	}

	if err := c.save(ckpt, "last.json"); err != nil {
		return err
	}
	if ckpt.IsBest {
		if err := c.save(ckpt, "best.json"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checkpointer) save(ckpt Checkpoint, name string) error {
	data, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}

	path := filepath.Join(c.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %v", path, err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint file written by a Checkpointer.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %v", path, err)
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %v", path, err)
	}
	return &ckpt, nil
}
