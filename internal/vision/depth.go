package vision

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DepthMap is a float32 depth image in meters. A reading can be NaN, Inf,
// zero or subnormal when the sensor could not measure that pixel.
type DepthMap struct {
	Data   []float32
	Width  int
	Height int
}

// NewDepthMap allocates a zeroed depth map.
func NewDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		Data:   make([]float32, width*height),
		Width:  width,
		Height: height,
	}
}

// DepthMapFromRaw parses a little-endian float32 plane of the given geometry,
// the layout the depth capture pipe delivers.
func DepthMapFromRaw(data []byte, width, height int) (*DepthMap, error) {
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("depth plane is %d bytes, want %d", len(data), width*height*4)
	}
	dm := NewDepthMap(width, height)
	for i := range dm.Data {
		dm.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return dm, nil
}

// At returns the depth reading at (x, y). Out-of-bounds reads report NaN
// rather than panicking, since sampling grids can touch frame borders.
func (d *DepthMap) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return float32(math.NaN())
	}
	return d.Data[y*d.Width+x]
}

// Set writes the depth reading at (x, y).
func (d *DepthMap) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return
	}
	d.Data[y*d.Width+x] = v
}

// Clone returns a deep copy of the depth map.
func (d *DepthMap) Clone() *DepthMap {
	dup := NewDepthMap(d.Width, d.Height)
	copy(dup.Data, d.Data)
	return dup
}

// IsMeasurable reports whether v is a usable depth reading. Sensors emit
// NaN, infinities and zeros for pixels they could not resolve.
func IsMeasurable(v float32) bool {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	// Reject zero and subnormals the same way isnormal() does.
	if v == 0 || math.Abs(f) < math.SmallestNonzeroFloat32*float64(1<<23) {
		return false
	}
	return true
}
