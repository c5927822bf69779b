package vision

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Geometry describes how a source frame was letterboxed into a network
// input, so decoded boxes can be mapped back to frame coordinates.
type Geometry struct {
	NetWidth   int
	NetHeight  int
	ContentW   int
	ContentH   int
	OffsetX    int
	OffsetY    int
	SrcWidth   int
	SrcHeight  int
}

// LetterboxGeometry computes the scaled content size and padding offsets for
// fitting a srcW x srcH frame into a netW x netH input without cropping.
func LetterboxGeometry(srcW, srcH, netW, netH int) Geometry {
	contentW := netW
	contentH := srcH * netW / srcW
	if contentH > netH {
		contentH = netH
		contentW = srcW * netH / srcH
	}
	return Geometry{
		NetWidth:  netW,
		NetHeight: netH,
		ContentW:  contentW,
		ContentH:  contentH,
		OffsetX:   (netW - contentW) / 2,
		OffsetY:   (netH - contentH) / 2,
		SrcWidth:  srcW,
		SrcHeight: srcH,
	}
}

// ToFrame maps a box center/size normalized to the network input back to
// coordinates normalized to the original frame.
func (g Geometry) ToFrame(cx, cy, w, h float64) (fx, fy, fw, fh float64) {
	fx = (cx*float64(g.NetWidth) - float64(g.OffsetX)) / float64(g.ContentW)
	fy = (cy*float64(g.NetHeight) - float64(g.OffsetY)) / float64(g.ContentH)
	fw = w * float64(g.NetWidth) / float64(g.ContentW)
	fh = h * float64(g.NetHeight) / float64(g.ContentH)
	return
}

// LetterboxInto scales src to fit dst's geometry, pads the borders with
// mid gray and writes the normalized planar result into dst. When swapRB is
// set the red and blue planes are exchanged on the way in, which is how the
// scheduler converts to the engine's expected channel ordering.
func LetterboxInto(src *Image, dst *Tensor, swapRB bool) Geometry {
	g := LetterboxGeometry(src.Width, src.Height, dst.Width, dst.Height)

	scaled := image.NewRGBA(image.Rect(0, 0, g.ContentW, g.ContentH))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), src.ToRGBA(), image.Rect(0, 0, src.Width, src.Height), xdraw.Src, nil)

	dst.Fill(0.5)

	for y := 0; y < g.ContentH; y++ {
		for x := 0; x < g.ContentW; x++ {
			o := scaled.PixOffset(x, y)
			r := float32(scaled.Pix[o]) / 255
			gc := float32(scaled.Pix[o+1]) / 255
			b := float32(scaled.Pix[o+2]) / 255
			if swapRB {
				r, b = b, r
			}
			tx := x + g.OffsetX
			ty := y + g.OffsetY
			dst.Set(0, ty, tx, r)
			if dst.Channels > 1 {
				dst.Set(1, ty, tx, gc)
			}
			if dst.Channels > 2 {
				dst.Set(2, ty, tx, b)
			}
		}
	}
	return g
}
