package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/tsawler/go-trainer/tensor"
)

// feedBatch stages one batch worth of values and folds it.
func feedBatch(t *testing.T, m *Manager, values map[string]interface{}) {
	t.Helper()

	m.BeginBatch()
	if err := m.AddValues(values); err != nil {
		t.Fatalf("AddValues failed: %v", err)
	}
	if err := m.EndBatch(); err != nil {
		t.Fatalf("EndBatch failed: %v", err)
	}
}

// TestToFloat tests scalar normalization across value kinds
func TestToFloat(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected float64
		wantErr  bool
	}{
		{"float64", 1.5, 1.5, false},
		{"float32", float32(2.0), 2.0, false},
		{"int", 3, 3.0, false},
		{"int32", int32(4), 4.0, false},
		{"int64", int64(5), 5.0, false},
		{"tensor", tensor.FromScalar(0.25), 0.25, false},
		{"string", "loss", 0, true},
		{"nil", nil, 0, true},
		{"nan", math.NaN(), 0, true},
		{"inf", math.Inf(1), 0, true},
	}

	for _, tt := range tests {
		f, err := ToFloat(tt.value)
		if tt.wantErr {
			if !errors.Is(err, ErrNotScalar) {
				t.Errorf("%s: expected ErrNotScalar, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if math.Abs(f-tt.expected) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", tt.name, tt.expected, f)
		}
	}
}

// TestRunningMeanPerLoader tests that loader means end up in the epoch values
func TestRunningMeanPerLoader(t *testing.T) {
	m := NewManager("valid", "loss", true)

	m.BeginEpoch()
	m.BeginLoader("train")
	for _, v := range []float64{1.0, 2.0, 3.0} {
		feedBatch(t, m, map[string]interface{}{"m": v})
	}
	m.EndLoader()

	got := m.EpochValues["train"]["m"]
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("Expected mean 2.0, got %f", got)
	}
}

// TestKeyConsistency tests that a changed metric set fails the batch fold
func TestKeyConsistency(t *testing.T) {
	m := NewManager("valid", "loss", true)

	m.BeginEpoch()
	m.BeginLoader("train")

	feedBatch(t, m, map[string]interface{}{"loss": 1.0})

	m.BeginBatch()
	if err := m.AddValues(map[string]interface{}{"loss": 0.5, "acc": 0.9}); err != nil {
		t.Fatalf("AddValues failed: %v", err)
	}
	if err := m.EndBatch(); !errors.Is(err, ErrInconsistentMetrics) {
		t.Errorf("Expected ErrInconsistentMetrics, got %v", err)
	}

	// A renamed metric with the same cardinality must also fail.
	m.BeginBatch()
	if err := m.AddValue("cost", 0.5); err != nil {
		t.Fatalf("AddValue failed: %v", err)
	}
	if err := m.EndBatch(); !errors.Is(err, ErrInconsistentMetrics) {
		t.Errorf("Expected ErrInconsistentMetrics for renamed metric, got %v", err)
	}
}

// runEpoch pushes a single-batch validation pass with the given loss value
// and closes the epoch.
func runEpoch(t *testing.T, m *Manager, metric string, value float64) {
	t.Helper()

	m.BeginEpoch()
	m.BeginLoader("valid")
	feedBatch(t, m, map[string]interface{}{metric: value})
	m.EndLoader()
	if err := m.EndEpochTrain(); err != nil {
		t.Fatalf("EndEpochTrain failed: %v", err)
	}
}

// TestBestTrackingMinimize tests best-value tracking when minimizing
func TestBestTrackingMinimize(t *testing.T) {
	m := NewManager("valid", "loss", true)

	values := []float64{1.0, 0.5, 0.8}
	expected := []bool{true, true, false}

	for i, v := range values {
		runEpoch(t, m, "loss", v)
		if m.IsBest != expected[i] {
			t.Errorf("Epoch %d: expected IsBest=%v, got %v", i, expected[i], m.IsBest)
		}
	}

	if math.Abs(m.BestValue-0.5) > 1e-9 {
		t.Errorf("Expected best value 0.5, got %f", m.BestValue)
	}
}

// TestBestTrackingMaximize tests best-value tracking when maximizing
func TestBestTrackingMaximize(t *testing.T) {
	m := NewManager("valid", "acc", false)

	values := []float64{0.7, 0.9, 0.8}
	expected := []bool{true, true, false}

	for i, v := range values {
		runEpoch(t, m, "acc", v)
		if m.IsBest != expected[i] {
			t.Errorf("Epoch %d: expected IsBest=%v, got %v", i, expected[i], m.IsBest)
		}
	}

	if math.Abs(m.BestValue-0.9) > 1e-9 {
		t.Errorf("Expected best value 0.9, got %f", m.BestValue)
	}
}

// TestEndEpochTrainMissingValid tests the end-of-epoch preconditions
func TestEndEpochTrainMissingValid(t *testing.T) {
	m := NewManager("valid", "loss", true)

	// No validation loader at all.
	m.BeginEpoch()
	m.BeginLoader("train")
	feedBatch(t, m, map[string]interface{}{"loss": 1.0})
	m.EndLoader()
	if err := m.EndEpochTrain(); !errors.Is(err, ErrMissingValidValues) {
		t.Errorf("Expected ErrMissingValidValues, got %v", err)
	}

	// Validation loader present but main metric missing.
	m.BeginEpoch()
	m.BeginLoader("valid")
	feedBatch(t, m, map[string]interface{}{"acc": 0.5})
	m.EndLoader()
	if err := m.EndEpochTrain(); !errors.Is(err, ErrMissingValidValues) {
		t.Errorf("Expected ErrMissingValidValues for missing metric, got %v", err)
	}
}

// TestValidValuesSnapshot tests that ValidValues holds the latest snapshot
func TestValidValuesSnapshot(t *testing.T) {
	m := NewManager("valid", "loss", true)

	runEpoch(t, m, "loss", 1.0)
	runEpoch(t, m, "loss", 0.25)

	got := m.ValidValues["loss"]
	if math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Expected snapshot loss 0.25, got %f", got)
	}
}

// TestBeginEpochResets tests that epoch values do not leak across epochs
func TestBeginEpochResets(t *testing.T) {
	m := NewManager("valid", "loss", true)

	m.BeginEpoch()
	m.BeginLoader("train")
	feedBatch(t, m, map[string]interface{}{"loss": 1.0})
	m.EndLoader()

	m.BeginEpoch()
	if len(m.EpochValues) != 0 {
		t.Errorf("Expected empty epoch values after BeginEpoch, got %d loaders", len(m.EpochValues))
	}
}
