package pipeline

import (
	"math"
	"testing"
)

// TestAveragerIdentity verifies W copies of a vector average to itself.
func TestAveragerIdentity(t *testing.T) {
	avg, err := NewTemporalAverager(3, 4)
	if err != nil {
		t.Fatalf("NewTemporalAverager failed: %v", err)
	}

	v := []float32{0.1, 0.5, 0.9, 0.25}
	for i := 0; i < 3; i++ {
		if err := avg.Remember(v); err != nil {
			t.Fatalf("Remember failed: %v", err)
		}
	}

	mean := avg.Average()
	for i := range v {
		if math.Abs(float64(mean[i]-v[i])) > 1e-6 {
			t.Errorf("mean[%d] = %g, want %g", i, mean[i], v[i])
		}
	}
}

// TestAveragerMean verifies the arithmetic mean over the window.
func TestAveragerMean(t *testing.T) {
	avg, err := NewTemporalAverager(2, 1)
	if err != nil {
		t.Fatalf("NewTemporalAverager failed: %v", err)
	}

	avg.Remember([]float32{0.2})
	avg.Remember([]float32{0.6})

	mean := avg.Average()
	if math.Abs(float64(mean[0]-0.4)) > 1e-6 {
		t.Errorf("mean = %g, want 0.4", mean[0])
	}
}

// TestAveragerOverwritesOldest verifies the circular overwrite after W
// entries.
func TestAveragerOverwritesOldest(t *testing.T) {
	avg, _ := NewTemporalAverager(3, 1)

	for _, v := range []float32{100, 1, 2, 3} {
		avg.Remember([]float32{v})
	}

	// 100 was overwritten; mean of 1, 2, 3 is 2.
	mean := avg.Average()
	if math.Abs(float64(mean[0]-2)) > 1e-5 {
		t.Errorf("mean = %g, want 2", mean[0])
	}
}

// TestAveragerRejectsWrongLength verifies a mismatched vector is refused.
func TestAveragerRejectsWrongLength(t *testing.T) {
	avg, _ := NewTemporalAverager(2, 4)

	if err := avg.Remember([]float32{1, 2}); err == nil {
		t.Error("Remember accepted a short vector")
	}
}

// TestAveragerRejectsBadDimensions verifies constructor validation.
func TestAveragerRejectsBadDimensions(t *testing.T) {
	if _, err := NewTemporalAverager(0, 4); err == nil {
		t.Error("accepted zero window")
	}
	if _, err := NewTemporalAverager(3, 0); err == nil {
		t.Error("accepted zero size")
	}
}
