package metrics

// AverageMeter maintains an incrementally updated running mean in O(1)
// memory regardless of how many values are added.
type AverageMeter struct {
	mean  float64
	count int
}

// Add folds a value into the running mean.
func (m *AverageMeter) Add(v float64) {
	m.count++
	m.mean += (v - m.mean) / float64(m.count)
}

// Mean returns the current running mean, or 0 if no values were added.
func (m *AverageMeter) Mean() float64 {
	return m.mean
}

// Count returns the number of values folded so far.
func (m *AverageMeter) Count() int {
	return m.count
}

// Reset clears the meter.
func (m *AverageMeter) Reset() {
	m.mean = 0
	m.count = 0
}
