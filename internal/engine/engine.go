// Package engine wraps the inference backends that turn a preprocessed
// frame into the raw per-cell detection tensor. The backends are opaque to
// the pipeline: it only sees the flattened output vector and its geometry.
package engine

import (
	"kestrel/internal/vision"
)

// Engine runs the detection network on a letterboxed input tensor and
// returns the concatenated raw output of all detection-producing layers.
//
// OutputSize is fixed for the lifetime of the engine; every Predict call
// returns a vector of exactly that length. Each output row is laid out as
// [cx, cy, w, h, objectness, class scores...] with coordinates normalized
// to the network input.
type Engine interface {
	// Name returns the backend identifier (e.g. "http", "dnn")
	Name() string

	// InputWidth and InputHeight are the network input geometry
	InputWidth() int
	InputHeight() int

	// Classes returns the ordered class labels the network was trained on
	Classes() []string

	// OutputSize returns the total detection-output length, computed once
	// at construction
	OutputSize() int

	// Predict runs one forward pass
	Predict(input *vision.Tensor) ([]float32, error)

	// Close releases backend resources
	Close() error
}

// RowStride returns the per-candidate stride of the raw output for a
// network with the given number of classes.
func RowStride(numClasses int) int {
	return 5 + numClasses
}
