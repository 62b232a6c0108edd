package metrics

import (
	"errors"
	"fmt"
	"math"
)

// Contract violations are fatal: callers propagate them and abort the run.
var (
	// ErrTimerNotStarted is returned when stopping an interval that was
	// never started or was already stopped.
	ErrTimerNotStarted = errors.New("timer was not started")

	// ErrNotScalar is returned when a metric value cannot be normalized to
	// a finite float64.
	ErrNotScalar = errors.New("value is not a finite scalar")

	// ErrInconsistentMetrics is returned when the set of metric names
	// changes between batches of one loader pass.
	ErrInconsistentMetrics = errors.New("metric set is not consistent among batches")

	// ErrMissingValidValues is returned when the validation loader or the
	// main metric is absent at the end of a training epoch.
	ErrMissingValidValues = errors.New("validation values are not available by the epoch end")
)

// Scalar is implemented by values that can reduce themselves to a single
// number, such as single-element tensors.
type Scalar interface {
	Item() (float64, error)
}

// ToFloat normalizes a metric value to a finite float64. Values implementing
// Scalar are reduced through Item; otherwise the value must already be a
// plain number.
func ToFloat(value interface{}) (float64, error) {
	var f float64

	switch v := value.(type) {
	case Scalar:
		item, err := v.Item()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotScalar, err)
		}
		f = item
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotScalar, value)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotScalar, f)
	}
	return f, nil
}

// Manager accumulates running means per metric name, scoped by loader and
// epoch, and tracks the best value of the designated main metric across
// epochs. Lifecycle methods mirror the loop boundaries the orchestrator
// fires: BeginEpoch/BeginLoader/BeginBatch open a scope, the matching End
// call folds it into the enclosing one.
type Manager struct {
	validLoader string
	mainMetric  string
	minimize    bool

	meters      map[string]*AverageMeter
	batchValues map[string]float64

	// EpochValues holds the finalized per-loader means of the current
	// epoch, keyed by loader name then metric name.
	EpochValues map[string]map[string]float64

	// ValidValues is the most recent validation-loader snapshot.
	ValidValues map[string]float64

	// BestValue is the best main-metric value seen so far.
	BestValue float64

	// IsBest reports whether the just-closed epoch produced the best
	// main-metric value so far.
	IsBest bool

	currentLoader string
}

// NewManager creates a metric manager. The main metric of validLoader drives
// best-value tracking; minimize selects the comparison direction.
func NewManager(validLoader, mainMetric string, minimize bool) *Manager {
	best := math.Inf(1)
	if !minimize {
		best = math.Inf(-1)
	}

	return &Manager{
		validLoader: validLoader,
		mainMetric:  mainMetric,
		minimize:    minimize,
		BestValue:   best,
	}
}

// BeginEpoch clears the per-loader values of the previous epoch.
func (m *Manager) BeginEpoch() {
	m.EpochValues = make(map[string]map[string]float64)
}

// BeginLoader resets the running accumulators for a fresh loader pass.
func (m *Manager) BeginLoader(name string) {
	m.currentLoader = name
	m.meters = make(map[string]*AverageMeter)
}

// EndLoader folds the running means into the epoch values under the current
// loader name.
func (m *Manager) EndLoader() {
	values := make(map[string]float64, len(m.meters))
	for name, meter := range m.meters {
		values[name] = meter.Mean()
	}
	m.EpochValues[m.currentLoader] = values

	m.currentLoader = ""
}

// BeginBatch clears the per-batch staging values.
func (m *Manager) BeginBatch() {
	m.batchValues = make(map[string]float64)
}

// AddValue stages a single named metric value for the current batch.
func (m *Manager) AddValue(name string, value interface{}) error {
	f, err := ToFloat(value)
	if err != nil {
		return fmt.Errorf("metric %q: %w", name, err)
	}

	m.batchValues[name] = f
	return nil
}

// AddValues stages a map of metric values for the current batch.
func (m *Manager) AddValues(values map[string]interface{}) error {
	for name, value := range values {
		if err := m.AddValue(name, value); err != nil {
			return err
		}
	}
	return nil
}

// EndBatch folds the staged values into the running means. Once the first
// batch has been folded, every later batch must report exactly the same set
// of metric names.
func (m *Manager) EndBatch() error {
	if len(m.meters) != 0 {
		if err := m.checkConsistency(); err != nil {
			return err
		}
	}

	for name, value := range m.batchValues {
		meter := m.meters[name]
		if meter == nil {
			meter = &AverageMeter{}
			m.meters[name] = meter
		}
		meter.Add(value)
	}
	return nil
}

func (m *Manager) checkConsistency() error {
	if len(m.meters) != len(m.batchValues) {
		return fmt.Errorf("%w: have %d metrics, batch reported %d",
			ErrInconsistentMetrics, len(m.meters), len(m.batchValues))
	}
	for name := range m.batchValues {
		if _, ok := m.meters[name]; !ok {
			return fmt.Errorf("%w: unexpected metric %q", ErrInconsistentMetrics, name)
		}
	}
	return nil
}

// BatchValues returns the staged values of the current batch.
func (m *Manager) BatchValues() map[string]float64 {
	return m.batchValues
}

// MainMetricValue returns the main metric of the validation loader for the
// current epoch.
func (m *Manager) MainMetricValue() (float64, error) {
	values, ok := m.EpochValues[m.validLoader]
	if !ok {
		return 0, fmt.Errorf("loader %q: %w", m.validLoader, ErrMissingValidValues)
	}

	value, ok := values[m.mainMetric]
	if !ok {
		return 0, fmt.Errorf("metric %q: %w", m.mainMetric, ErrMissingValidValues)
	}
	return value, nil
}

// EndEpochTrain snapshots the validation-loader values, compares the main
// metric against the best so far and updates BestValue and IsBest.
func (m *Manager) EndEpochTrain() error {
	value, err := m.MainMetricValue()
	if err != nil {
		return err
	}

	m.ValidValues = m.EpochValues[m.validLoader]

	if m.minimize {
		m.IsBest = value < m.BestValue
	} else {
		m.IsBest = value > m.BestValue
	}

	if m.IsBest {
		m.BestValue = value
	}
	return nil
}

// Minimize reports the comparison direction of the main metric.
func (m *Manager) Minimize() bool {
	return m.minimize
}

// MainMetric returns the name of the designated main metric.
func (m *Manager) MainMetric() string {
	return m.mainMetric
}

// ValidLoader returns the name of the designated validation loader.
func (m *Manager) ValidLoader() string {
	return m.validLoader
}
