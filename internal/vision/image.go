package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Image is an interleaved 8-bit pixel buffer with explicit geometry.
// Pixel (x, y) channel c lives at Pix[(y*Width+x)*Channels+c].
type Image struct {
	Pix      []uint8
	Width    int
	Height   int
	Channels int
}

// NewImage allocates a zeroed image with the given geometry.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Pix:      make([]uint8, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// DecodeJPEG decodes JPEG bytes into an RGB image.
// Returns an error for anything that is not a decodable frame.
func DecodeJPEG(data []byte) (*Image, error) {
	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}

	bounds := src.Bounds()
	img := NewImage(bounds.Dx(), bounds.Dy(), 3)
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			img.Pix[idx] = uint8(r >> 8)
			img.Pix[idx+1] = uint8(g >> 8)
			img.Pix[idx+2] = uint8(b >> 8)
			idx += 3
		}
	}
	return img, nil
}

// EncodeJPEG encodes the image (assumed RGB) to JPEG bytes.
func (m *Image) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, m.ToRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// At returns the value of channel c at (x, y).
func (m *Image) At(x, y, c int) uint8 {
	return m.Pix[(y*m.Width+x)*m.Channels+c]
}

// Set writes channel c at (x, y).
func (m *Image) Set(x, y, c int, v uint8) {
	m.Pix[(y*m.Width+x)*m.Channels+c] = v
}

// Clone returns a deep copy of the image.
func (m *Image) Clone() *Image {
	dup := &Image{
		Pix:      make([]uint8, len(m.Pix)),
		Width:    m.Width,
		Height:   m.Height,
		Channels: m.Channels,
	}
	copy(dup.Pix, m.Pix)
	return dup
}

// CopyInto copies pixel data into dst, reallocating dst's buffer only when
// the geometry changed. Used by the ring slots to reuse their backing arrays.
func (m *Image) CopyInto(dst *Image) {
	if dst.Width != m.Width || dst.Height != m.Height || dst.Channels != m.Channels {
		dst.Pix = make([]uint8, len(m.Pix))
		dst.Width = m.Width
		dst.Height = m.Height
		dst.Channels = m.Channels
	}
	copy(dst.Pix, m.Pix)
}

// ToRGBA converts the image to a stdlib image.RGBA for drawing and encoding.
func (m *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			o := out.PixOffset(x, y)
			i := (y*m.Width + x) * m.Channels
			if m.Channels >= 3 {
				out.Pix[o] = m.Pix[i]
				out.Pix[o+1] = m.Pix[i+1]
				out.Pix[o+2] = m.Pix[i+2]
			} else {
				out.Pix[o] = m.Pix[i]
				out.Pix[o+1] = m.Pix[i]
				out.Pix[o+2] = m.Pix[i]
			}
			out.Pix[o+3] = 0xff
		}
	}
	return out
}

// FromRGBA converts a stdlib RGBA image into an RGB Image.
func FromRGBA(src *image.RGBA) *Image {
	bounds := src.Bounds()
	img := NewImage(bounds.Dx(), bounds.Dy(), 3)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			o := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			i := (y*img.Width + x) * 3
			img.Pix[i] = src.Pix[o]
			img.Pix[i+1] = src.Pix[o+1]
			img.Pix[i+2] = src.Pix[o+2]
		}
	}
	return img
}

// FrameHeader carries the provenance of a captured frame.
type FrameHeader struct {
	Seq       uint64
	Timestamp time.Time
}
