package pipeline

import (
	"fmt"
)

// TemporalAverager keeps the raw inference outputs of the last W iterations
// in a circular buffer and folds them into a running arithmetic mean. The
// averaged vector is what gets decoded into boxes, which smooths the
// frame-to-frame jitter of single-shot detectors.
type TemporalAverager struct {
	window  int
	size    int
	history [][]float32
	index   int
}

// NewTemporalAverager allocates a history of window vectors, each sized to
// the network's total detection output. Both dimensions are fixed for the
// lifetime of the averager.
func NewTemporalAverager(window, size int) (*TemporalAverager, error) {
	if window <= 0 {
		return nil, fmt.Errorf("averaging window must be positive, got %d", window)
	}
	if size <= 0 {
		return nil, fmt.Errorf("output size must be positive, got %d", size)
	}
	history := make([][]float32, window)
	for i := range history {
		history[i] = make([]float32, size)
	}
	return &TemporalAverager{
		window:  window,
		size:    size,
		history: history,
	}, nil
}

// Window returns the averaging window W.
func (a *TemporalAverager) Window() int { return a.window }

// Remember copies raw into the next history slot, overwriting the entry
// from W iterations ago.
func (a *TemporalAverager) Remember(raw []float32) error {
	if len(raw) != a.size {
		return fmt.Errorf("raw output is %d elements, want %d", len(raw), a.size)
	}
	copy(a.history[a.index], raw)
	a.index = (a.index + 1) % a.window
	return nil
}

// Average returns the per-element arithmetic mean of the W stored vectors.
// Feeding the same vector W times yields that vector back.
func (a *TemporalAverager) Average() []float32 {
	mean := make([]float32, a.size)
	scale := float32(1) / float32(a.window)
	for _, entry := range a.history {
		for i, v := range entry {
			mean[i] += v * scale
		}
	}
	return mean
}
