package vision

import (
	"encoding/binary"
	"math"
	"testing"
)

// TestIsMeasurable verifies the sensor failure modes are rejected.
func TestIsMeasurable(t *testing.T) {
	cases := []struct {
		name string
		v    float32
		want bool
	}{
		{"normal", 2.5, true},
		{"small normal", 1.2e-38, true},
		{"negative normal", -1.0, true},
		{"zero", 0, false},
		{"nan", float32(math.NaN()), false},
		{"+inf", float32(math.Inf(1)), false},
		{"-inf", float32(math.Inf(-1)), false},
		{"subnormal", math.SmallestNonzeroFloat32, false},
	}
	for _, tc := range cases {
		if got := IsMeasurable(tc.v); got != tc.want {
			t.Errorf("IsMeasurable(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// TestDepthMapFromRaw verifies little-endian float32 plane parsing.
func TestDepthMapFromRaw(t *testing.T) {
	raw := make([]byte, 2*2*4)
	values := []float32{1.5, 2.5, 3.5, 4.5}
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	dm, err := DepthMapFromRaw(raw, 2, 2)
	if err != nil {
		t.Fatalf("DepthMapFromRaw failed: %v", err)
	}

	if dm.At(0, 0) != 1.5 || dm.At(1, 0) != 2.5 || dm.At(0, 1) != 3.5 || dm.At(1, 1) != 4.5 {
		t.Errorf("parsed plane = %v, want %v", dm.Data, values)
	}
}

// TestDepthMapFromRawRejectsShortPlane verifies size validation.
func TestDepthMapFromRawRejectsShortPlane(t *testing.T) {
	if _, err := DepthMapFromRaw(make([]byte, 10), 2, 2); err == nil {
		t.Error("accepted a truncated plane")
	}
}

// TestDepthMapAtOutOfBounds verifies border sampling reads NaN instead of
// panicking.
func TestDepthMapAtOutOfBounds(t *testing.T) {
	dm := NewDepthMap(4, 4)

	for _, p := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		if v := dm.At(p[0], p[1]); !math.IsNaN(float64(v)) {
			t.Errorf("At(%d, %d) = %g, want NaN", p[0], p[1], v)
		}
	}
}

// TestDepthMapClone verifies the copy is independent.
func TestDepthMapClone(t *testing.T) {
	dm := NewDepthMap(2, 2)
	dm.Set(1, 1, 7)

	dup := dm.Clone()
	dup.Set(1, 1, 9)

	if dm.At(1, 1) != 7 {
		t.Error("mutating the clone changed the original")
	}
}
