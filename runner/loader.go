package runner

import (
	"github.com/tsawler/go-trainer/tensor"
)

// Batch is one unit of input data, keyed by field name ("features",
// "targets", ...). Values are opaque to the loop; tensor-like values are
// moved to the active device before prediction.
type Batch map[string]interface{}

// Pair is the two-field batch shape many datasets produce. The supervised
// predictor normalizes it into a named Batch before device transfer.
type Pair struct {
	Inputs  interface{}
	Targets interface{}
}

// Loader yields an ordered sequence of batches for one data split.
// Reset begins a new pass; Next returns nil when the pass is complete.
// The raw item may be a Batch or a Pair; the active predictor normalizes it.
type Loader interface {
	// Len returns the number of batches in one pass.
	Len() int

	// BatchSize returns the per-item batch size.
	BatchSize() int

	// Reset starts a new pass over the data.
	Reset()

	// Next returns the next raw batch, or nil at the end of the pass.
	Next() (interface{}, error)
}

// NamedLoader pairs a loader with its split name. Loader sets are ordered,
// so they travel as slices rather than maps.
type NamedLoader struct {
	Name   string
	Loader Loader
}

// Model is the minimal contract the loop needs: a forward pass and a
// train/eval mode switch.
type Model interface {
	Forward(input interface{}) (interface{}, error)
	Train()
	Eval()
}

// DeviceMover is implemented by batch values that can transfer themselves
// to a device. Values without this capability pass through unchanged.
type DeviceMover interface {
	ToDevice(device tensor.DeviceType) (*tensor.Tensor, error)
}
