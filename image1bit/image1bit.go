// Package image1bit provides a 1-bit black/white image format matching the
// frame memory of SSD1680-family e-paper controllers.
//
// Pixels carry semantic values (Black/White), never raw wire polarity. The
// packed wire format is MSB-first with bit=1 encoding a white pixel, which
// is the controller's documented (inverted) convention.
package image1bit

import (
	"fmt"
	"image"
	"image/color"
)

// Bit is a 1-bit color with semantic black/white values.
type Bit bool

const (
	Black Bit = false
	White Bit = true
)

// RGBA converts the Bit color to standard RGBA.
func (b Bit) RGBA() (r, g, bl, a uint32) {
	if b {
		return 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF
	}
	return 0, 0, 0, 0xFFFF
}

// String returns "white" or "black".
func (b Bit) String() string {
	if b {
		return "white"
	}
	return "black"
}

// toBit converts any color.Color to Bit by luminance threshold.
func toBit(c color.Color) color.Color {
	if b, ok := c.(Bit); ok {
		return b
	}
	r, g, b, _ := c.RGBA()
	// Standard grayscale conversion: 0.299R + 0.587G + 0.114B
	y := (299*r + 587*g + 114*b + 500) / 1000
	return Bit(y >= 0x8000)
}

// BitModel converts colors to Bit.
var BitModel = color.ModelFunc(toBit)

// Image is a 1-bit image stored one pixel per element, row-major.
// It implements image.Image and draw.Image so standard drawing code can
// target it directly.
type Image struct {
	Pix  []Bit           // Pixel data, one entry per pixel
	Rect image.Rectangle // Image bounds
}

// New creates an all-black Image with the specified bounds.
func New(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:  make([]Bit, w*h),
		Rect: r,
	}
}

// NewFilled creates an Image with the specified bounds, filled with b.
func NewFilled(r image.Rectangle, b Bit) *Image {
	p := New(r)
	if b {
		p.Fill(b)
	}
	return p
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return BitModel
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
func (p *Image) At(x, y int) color.Color {
	return p.BitAt(x, y)
}

// BitAt returns the Bit color of the pixel at (x, y).
func (p *Image) BitAt(x, y int) Bit {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Black
	}
	return p.Pix[p.pixOffset(x, y)]
}

// Set sets the color of the pixel at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.pixOffset(x, y)] = BitModel.Convert(c).(Bit)
}

// SetBit sets the Bit color of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *Image) SetBit(x, y int, b Bit) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.pixOffset(x, y)] = b
}

// Fill sets every pixel to b.
func (p *Image) Fill(b Bit) {
	for i := range p.Pix {
		p.Pix[i] = b
	}
}

// FillRect sets every pixel inside r (clipped to the image bounds) to b.
func (p *Image) FillRect(r image.Rectangle, b Bit) {
	r = r.Intersect(p.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := p.pixOffset(r.Min.X, y)
		for i := 0; i < r.Dx(); i++ {
			p.Pix[row+i] = b
		}
	}
}

// Clone returns a deep copy of the image.
func (p *Image) Clone() *Image {
	c := &Image{
		Pix:  make([]Bit, len(p.Pix)),
		Rect: p.Rect,
	}
	copy(c.Pix, p.Pix)
	return c
}

// Equal reports whether two images have the same bounds and pixels.
func (p *Image) Equal(o *Image) bool {
	if p.Rect != o.Rect || len(p.Pix) != len(o.Pix) {
		return false
	}
	for i := range p.Pix {
		if p.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

func (p *Image) pixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Rect.Dx() + (x - p.Rect.Min.X)
}

// PackedLen returns the packed buffer length for a w×h frame.
func PackedLen(w, h int) int {
	return (w + 7) / 8 * h
}

// Pack encodes the image into the controller's wire format: one bit per
// pixel, MSB-first within each byte, bit=1 for white. Rows are padded to a
// byte boundary with cleared bits.
func (p *Image) Pack() []byte {
	w, h := p.Rect.Dx(), p.Rect.Dy()
	stride := (w + 7) / 8
	buf := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if p.Pix[y*w+x] {
				buf[y*stride+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return buf
}

// Unpack is the exact inverse of Pack. It rejects a buffer whose length
// disagrees with the w×h geometry.
func Unpack(buf []byte, w, h int) (*Image, error) {
	if want := PackedLen(w, h); len(buf) != want {
		return nil, fmt.Errorf("image1bit: packed buffer is %d bytes, want %d for %dx%d", len(buf), want, w, h)
	}
	stride := (w + 7) / 8
	p := New(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if buf[y*stride+x/8]&(0x80>>uint(x%8)) != 0 {
				p.Pix[y*w+x] = White
			}
		}
	}
	return p, nil
}
