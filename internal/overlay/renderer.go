// Package overlay draws decoded detection boxes onto frames for the
// display stage and the annotated-frame publishers.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"kestrel/internal/pipeline"
	"kestrel/internal/vision"
)

// palette cycles per class index so the same class always gets the same
// box color.
var palette = []color.RGBA{
	{R: 255, G: 64, B: 64, A: 255},
	{R: 64, G: 255, B: 64, A: 255},
	{R: 64, G: 128, B: 255, A: 255},
	{R: 255, G: 200, B: 0, A: 255},
	{R: 255, G: 64, B: 255, A: 255},
	{R: 0, G: 220, B: 220, A: 255},
}

// Renderer encodes frames with bounding boxes and class labels overlaid.
type Renderer struct {
	quality   int
	thickness int
}

// NewRenderer creates a renderer with the given JPEG quality.
func NewRenderer(quality int) *Renderer {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Renderer{quality: quality, thickness: 2}
}

// Render draws result's boxes over frame and returns the encoded JPEG.
// A nil result renders the bare frame.
func (r *Renderer) Render(frame *vision.Image, result *pipeline.AggregatedResult) ([]byte, error) {
	canvas := frame.ToRGBA()

	if result != nil {
		for _, rec := range result.Records() {
			r.drawRecord(canvas, frame.Width, frame.Height, rec)
		}
	}

	annotated := vision.FromRGBA(canvas)
	return annotated.EncodeJPEG(r.quality)
}

func (r *Renderer) drawRecord(canvas *image.RGBA, frameW, frameH int, rec pipeline.DetectionRecord) {
	xminf, yminf, xmaxf, ymaxf := rec.Corners()
	xmin := int(xminf * float32(frameW))
	ymin := int(yminf * float32(frameH))
	xmax := int(xmaxf * float32(frameW))
	ymax := int(ymaxf * float32(frameH))

	col := palette[rec.Class%len(palette)]
	drawRect(canvas, xmin, ymin, xmax, ymax, r.thickness, col)

	label := fmt.Sprintf("%s %.0f%%", rec.Label, rec.Probability*100)
	if rec.HasDepth() {
		label = fmt.Sprintf("%s %.1fm", label, rec.Depth)
	}
	drawLabel(canvas, xmin+2, ymin-4, label, col)
}

// drawRect draws an axis-aligned rectangle outline of the given thickness,
// clipped to the canvas.
func drawRect(canvas *image.RGBA, xmin, ymin, xmax, ymax, thickness int, col color.RGBA) {
	bounds := canvas.Bounds()
	for t := 0; t < thickness; t++ {
		for x := xmin; x <= xmax; x++ {
			setClipped(canvas, bounds, x, ymin+t, col)
			setClipped(canvas, bounds, x, ymax-t, col)
		}
		for y := ymin; y <= ymax; y++ {
			setClipped(canvas, bounds, xmin+t, y, col)
			setClipped(canvas, bounds, xmax-t, y, col)
		}
	}
}

func setClipped(canvas *image.RGBA, bounds image.Rectangle, x, y int, col color.RGBA) {
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	canvas.SetRGBA(x, y, col)
}

// drawLabel renders text at the baseline position, keeping it inside the
// canvas when the box touches the top edge.
func drawLabel(canvas *image.RGBA, x, y int, text string, col color.RGBA) {
	if y < basicfont.Face7x13.Ascent {
		y = basicfont.Face7x13.Ascent
	}
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

var _ pipeline.Renderer = (*Renderer)(nil)
