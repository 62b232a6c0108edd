package tensor

import (
	"fmt"
)

// DType identifies the element type of a tensor.
type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// DeviceType identifies where tensor data lives.
type DeviceType int

const (
	CPU DeviceType = iota
	GPU
)

func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// Tensor is a dense n-dimensional value. This package only implements CPU
// storage; accelerator transfer is a capability the orchestrator probes for,
// provided here so batches survive a CPU round trip unchanged.
type Tensor struct {
	Shape    []int
	DType    DType
	Device   DeviceType
	Data     interface{}
	NumElems int
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s, elements=%d)",
		t.Shape, t.DType, t.Device, t.NumElems)
}

func validateShape(shape []int) error {
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func numElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

// NewTensor creates a tensor from existing data. The data slice type must
// match the dtype and its length must match the shape.
func NewTensor(shape []int, dtype DType, device DeviceType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	elems := numElements(shape)

	switch dtype {
	case Float32:
		d, ok := data.([]float32)
		if !ok {
			return nil, fmt.Errorf("dtype %s requires []float32 data, got %T", dtype, data)
		}
		if len(d) != elems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, elems)
		}
	case Int32:
		d, ok := data.([]int32)
		if !ok {
			return nil, fmt.Errorf("dtype %s requires []int32 data, got %T", dtype, data)
		}
		if len(d) != elems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, elems)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		DType:    dtype,
		Device:   device,
		Data:     data,
		NumElems: elems,
	}, nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	elems := numElements(shape)

	var data interface{}
	switch dtype {
	case Float32:
		data = make([]float32, elems)
	case Int32:
		data = make([]int32, elems)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}

	return NewTensor(shape, dtype, device, data)
}

// FromScalar creates a single-element Float32 tensor, handy for loss values.
func FromScalar(v float64) *Tensor {
	t, _ := NewTensor([]int{1}, Float32, CPU, []float32{float32(v)})
	return t
}

// Item extracts the value of a single-element tensor as a float64.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a single-element tensor, got %d elements", t.NumElems)
	}

	switch data := t.Data.(type) {
	case []float32:
		return float64(data[0]), nil
	case []int32:
		return float64(data[0]), nil
	default:
		return 0, fmt.Errorf("unsupported data type %T", t.Data)
	}
}

// ToDevice returns a tensor resident on the given device. CPU-to-CPU is a
// no-op. GPU transfer requires an accelerator build, which this package does
// not provide.
func (t *Tensor) ToDevice(device DeviceType) (*Tensor, error) {
	if t.Device == device {
		return t, nil
	}

	switch device {
	case CPU:
		moved := *t
		moved.Device = CPU
		return &moved, nil
	default:
		return nil, fmt.Errorf("transfer to %s is not supported in this build", device)
	}
}

// At returns the element at a flat index as a float64.
func (t *Tensor) At(i int) (float64, error) {
	if i < 0 || i >= t.NumElems {
		return 0, fmt.Errorf("index %d out of range [0, %d)", i, t.NumElems)
	}

	switch data := t.Data.(type) {
	case []float32:
		return float64(data[i]), nil
	case []int32:
		return float64(data[i]), nil
	default:
		return 0, fmt.Errorf("unsupported data type %T", t.Data)
	}
}
