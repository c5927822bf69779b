package vision

import (
	"math"
	"testing"
)

// TestLetterboxGeometryWide verifies a wide frame pads top and bottom.
func TestLetterboxGeometryWide(t *testing.T) {
	g := LetterboxGeometry(640, 480, 416, 416)

	if g.ContentW != 416 {
		t.Errorf("ContentW = %d, want 416", g.ContentW)
	}
	if g.ContentH != 312 {
		t.Errorf("ContentH = %d, want 312", g.ContentH)
	}
	if g.OffsetX != 0 || g.OffsetY != 52 {
		t.Errorf("offsets = (%d, %d), want (0, 52)", g.OffsetX, g.OffsetY)
	}
}

// TestLetterboxGeometryTall verifies a tall frame pads left and right.
func TestLetterboxGeometryTall(t *testing.T) {
	g := LetterboxGeometry(480, 640, 416, 416)

	if g.ContentH != 416 {
		t.Errorf("ContentH = %d, want 416", g.ContentH)
	}
	if g.ContentW != 312 {
		t.Errorf("ContentW = %d, want 312", g.ContentW)
	}
	if g.OffsetX != 52 || g.OffsetY != 0 {
		t.Errorf("offsets = (%d, %d), want (52, 0)", g.OffsetX, g.OffsetY)
	}
}

// TestLetterboxGeometrySquare verifies a square frame fills the input.
func TestLetterboxGeometrySquare(t *testing.T) {
	g := LetterboxGeometry(100, 100, 416, 416)

	if g.ContentW != 416 || g.ContentH != 416 {
		t.Errorf("content = %dx%d, want 416x416", g.ContentW, g.ContentH)
	}
	if g.OffsetX != 0 || g.OffsetY != 0 {
		t.Errorf("offsets = (%d, %d), want (0, 0)", g.OffsetX, g.OffsetY)
	}
}

// TestToFrameCenter verifies the input center maps to the frame center
// regardless of padding.
func TestToFrameCenter(t *testing.T) {
	g := LetterboxGeometry(640, 480, 416, 416)

	fx, fy, _, _ := g.ToFrame(0.5, 0.5, 0.2, 0.2)
	if math.Abs(fx-0.5) > 1e-9 || math.Abs(fy-0.5) > 1e-9 {
		t.Errorf("center maps to (%g, %g), want (0.5, 0.5)", fx, fy)
	}
}

// TestToFrameEdges verifies content edges map to frame edges.
func TestToFrameEdges(t *testing.T) {
	g := LetterboxGeometry(640, 480, 416, 416)

	// Top of the content band is 52 pixels into the network input.
	_, fy, _, _ := g.ToFrame(0.5, 52.0/416.0, 0, 0)
	if math.Abs(fy) > 1e-9 {
		t.Errorf("content top maps to %g, want 0", fy)
	}

	_, fy, _, _ = g.ToFrame(0.5, 364.0/416.0, 0, 0)
	if math.Abs(fy-1) > 1e-9 {
		t.Errorf("content bottom maps to %g, want 1", fy)
	}
}

// TestToFrameSizeScaling verifies width and height are rescaled by the
// padding ratio.
func TestToFrameSizeScaling(t *testing.T) {
	g := LetterboxGeometry(640, 480, 416, 416)

	_, _, fw, fh := g.ToFrame(0.5, 0.5, 0.5, 0.375)
	if math.Abs(fw-0.5) > 1e-9 {
		t.Errorf("width maps to %g, want 0.5", fw)
	}
	// 0.375 * 416 / 312 = 0.5
	if math.Abs(fh-0.5) > 1e-9 {
		t.Errorf("height maps to %g, want 0.5", fh)
	}
}

// TestLetterboxIntoPadsGray verifies the borders hold mid gray and the
// content area holds the source pixels.
func TestLetterboxIntoPadsGray(t *testing.T) {
	src := NewImage(64, 32, 3)
	for i := range src.Pix {
		src.Pix[i] = 255 // all white
	}
	dst := NewTensor(32, 32, 3)

	g := LetterboxInto(src, dst, false)
	if g.OffsetY == 0 {
		t.Fatal("expected vertical padding for a wide source")
	}

	// Padding row.
	if v := dst.At(0, 0, 16); v != 0.5 {
		t.Errorf("padding value = %g, want 0.5", v)
	}
	// Content center.
	if v := dst.At(0, 16, 16); math.Abs(float64(v-1)) > 0.02 {
		t.Errorf("content value = %g, want ~1", v)
	}
}

// TestLetterboxIntoSwapRB verifies the channel exchange.
func TestLetterboxIntoSwapRB(t *testing.T) {
	src := NewImage(32, 32, 3)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.Set(x, y, 0, 255) // pure red
		}
	}
	dst := NewTensor(32, 32, 3)

	LetterboxInto(src, dst, true)

	if v := dst.At(0, 16, 16); math.Abs(float64(v)) > 0.02 {
		t.Errorf("channel 0 = %g, want ~0 after swap", v)
	}
	if v := dst.At(2, 16, 16); math.Abs(float64(v-1)) > 0.02 {
		t.Errorf("channel 2 = %g, want ~1 after swap", v)
	}
}
