package dataset

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/go-trainer/runner"
	"github.com/tsawler/go-trainer/tensor"
)

// Dataset is an indexed collection of (features, target) samples.
type Dataset interface {
	// Len returns the total number of samples.
	Len() int

	// Get returns a single sample as CPU tensors.
	Get(idx int) (features *tensor.Tensor, target *tensor.Tensor, err error)
}

// DataLoader batches a dataset into runner pairs, optionally shuffling the
// sample order on every pass. It implements runner.Loader.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	indices   []int
	position  int
}

// NewDataLoader creates a data loader over the dataset.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		indices:   indices,
	}, nil
}

// Len returns the number of batches in one pass.
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// BatchSize returns the configured batch size.
func (dl *DataLoader) BatchSize() int {
	return dl.batchSize
}

// Reset starts a new pass, reshuffling the sample order if requested.
func (dl *DataLoader) Reset() {
	dl.position = 0

	if dl.shuffle {
		for i := len(dl.indices) - 1; i > 0; i-- {
			j := rand.Intn(i + 1)
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		}
	}
}

// Next returns the next batch as a runner.Pair, or nil when the pass is
// complete. The final batch may be smaller than the configured size.
func (dl *DataLoader) Next() (interface{}, error) {
	if dl.position >= len(dl.indices) {
		return nil, nil
	}

	end := dl.position + dl.batchSize
	if end > len(dl.indices) {
		end = len(dl.indices)
	}

	batchIndices := dl.indices[dl.position:end]
	dl.position = end

	features, targets, err := dl.loadBatch(batchIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}

	return runner.Pair{Inputs: features, Targets: targets}, nil
}

// loadBatch stacks the selected samples along a new leading dimension.
func (dl *DataLoader) loadBatch(indices []int) (*tensor.Tensor, *tensor.Tensor, error) {
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("empty batch indices")
	}

	firstFeatures, firstTarget, err := dl.dataset.Get(indices[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sample %d: %v", indices[0], err)
	}

	featureShape := append([]int{len(indices)}, firstFeatures.Shape...)
	targetShape := append([]int{len(indices)}, firstTarget.Shape...)

	batchFeatures, err := tensor.Zeros(featureShape, firstFeatures.DType, tensor.CPU)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create feature tensor: %v", err)
	}

	batchTargets, err := tensor.Zeros(targetShape, firstTarget.DType, tensor.CPU)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create target tensor: %v", err)
	}

	for i, idx := range indices {
		features, target, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}

		if err := copyInto(batchFeatures, features, i); err != nil {
			return nil, nil, fmt.Errorf("failed to copy features for sample %d: %v", idx, err)
		}
		if err := copyInto(batchTargets, target, i); err != nil {
			return nil, nil, fmt.Errorf("failed to copy target for sample %d: %v", idx, err)
		}
	}

	return batchFeatures, batchTargets, nil
}

// copyInto copies a sample tensor into one slot of a batch tensor.
func copyInto(batch, sample *tensor.Tensor, slot int) error {
	if batch.DType != sample.DType {
		return fmt.Errorf("dtype mismatch: batch %s, sample %s", batch.DType, sample.DType)
	}

	offset := slot * sample.NumElems

	switch batch.DType {
	case tensor.Float32:
		batchData := batch.Data.([]float32)
		sampleData := sample.Data.([]float32)
		copy(batchData[offset:offset+sample.NumElems], sampleData)
	case tensor.Int32:
		batchData := batch.Data.([]int32)
		sampleData := sample.Data.([]int32)
		copy(batchData[offset:offset+sample.NumElems], sampleData)
	default:
		return fmt.Errorf("unsupported dtype for batch copying: %s", batch.DType)
	}

	return nil
}

// SliceDataset is a basic in-memory Dataset.
type SliceDataset struct {
	features []*tensor.Tensor
	targets  []*tensor.Tensor
}

// NewSliceDataset creates a dataset from parallel sample slices.
func NewSliceDataset(features, targets []*tensor.Tensor) (*SliceDataset, error) {
	if len(features) != len(targets) {
		return nil, fmt.Errorf("features and targets must have the same length: got %d and %d",
			len(features), len(targets))
	}

	return &SliceDataset{features: features, targets: targets}, nil
}

// Len returns the number of samples in the dataset.
func (ds *SliceDataset) Len() int {
	return len(ds.features)
}

// Get returns the sample at the given index.
func (ds *SliceDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= len(ds.features) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(ds.features))
	}
	return ds.features[idx], ds.targets[idx], nil
}

// RandomDataset generates random samples, handy for tests and smoke runs.
type RandomDataset struct {
	size         int
	featureShape []int
	numClasses   int
	rng          *rand.Rand
}

// NewRandomDataset creates a dataset of random Float32 features and Int32
// class targets.
func NewRandomDataset(size int, featureShape []int, numClasses int, seed int64) *RandomDataset {
	if numClasses <= 0 {
		numClasses = 2
	}

	return &RandomDataset{
		size:         size,
		featureShape: featureShape,
		numClasses:   numClasses,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Len returns the size of the dataset.
func (rd *RandomDataset) Len() int {
	return rd.size
}

// Get generates a random sample. Values are deterministic per seed but not
// per index.
func (rd *RandomDataset) Get(idx int) (*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= rd.size {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, rd.size)
	}

	elems := 1
	for _, dim := range rd.featureShape {
		elems *= dim
	}

	featureData := make([]float32, elems)
	for i := range featureData {
		featureData[i] = rd.rng.Float32()*2.0 - 1.0
	}

	features, err := tensor.NewTensor(rd.featureShape, tensor.Float32, tensor.CPU, featureData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create feature tensor: %v", err)
	}

	target, err := tensor.NewTensor([]int{1}, tensor.Int32, tensor.CPU,
		[]int32{int32(rd.rng.Intn(rd.numClasses))})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create target tensor: %v", err)
	}

	return features, target, nil
}
