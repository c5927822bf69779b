package vision

// Tensor is a planar float32 buffer in CHW order, the layout the inference
// backends expect. Element (c, y, x) lives at Data[c*Height*Width+y*Width+x].
type Tensor struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// NewTensor allocates a zeroed tensor with the given geometry.
func NewTensor(width, height, channels int) *Tensor {
	return &Tensor{
		Data:     make([]float32, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// At returns the element at channel c, row y, column x.
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[c*t.Height*t.Width+y*t.Width+x]
}

// Set writes the element at channel c, row y, column x.
func (t *Tensor) Set(c, y, x int, v float32) {
	t.Data[c*t.Height*t.Width+y*t.Width+x] = v
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.Data {
		t.Data[i] = v
	}
}
