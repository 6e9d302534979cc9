package image1bit

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func TestPackedLen(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want int
	}{
		{"8x1", 8, 1, 1},
		{"176x264 panel", 176, 264, 5808},
		{"264x176 landscape", 264, 176, 5808},
		{"non-multiple width", 10, 3, 6},
		{"1x1", 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PackedLen(tt.w, tt.h); got != tt.want {
				t.Errorf("PackedLen(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
			}
			p := New(image.Rect(0, 0, tt.w, tt.h))
			if got := len(p.Pack()); got != tt.want {
				t.Errorf("len(Pack()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPackPolarity(t *testing.T) {
	// All-black 8x1 frame packs to 0x00.
	p := New(image.Rect(0, 0, 8, 1))
	if got := p.Pack(); got[0] != 0x00 {
		t.Errorf("all-black frame packed to %#02x, want 0x00", got[0])
	}

	// All-white 8x1 frame packs to 0xFF.
	p.Fill(White)
	if got := p.Pack(); got[0] != 0xFF {
		t.Errorf("all-white frame packed to %#02x, want 0xFF", got[0])
	}

	// A single black pixel at (0,0) clears only the MSB.
	p.SetBit(0, 0, Black)
	if got := p.Pack(); got[0] != 0x7F {
		t.Errorf("black at (0,0) packed to %#02x, want 0x7F", got[0])
	}
}

func TestPackPadsShortRows(t *testing.T) {
	// 10 wide: 2 bytes per row, last 6 bits of the second byte unused.
	p := NewFilled(image.Rect(0, 0, 10, 2), White)
	buf := p.Pack()
	want := []byte{0xFF, 0xC0, 0xFF, 0xC0}
	for i, b := range want {
		if buf[i] != b {
			t.Errorf("buf[%d] = %#02x, want %#02x", i, buf[i], b)
		}
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	p := New(image.Rect(0, 0, 29, 7))
	// Deterministic pseudo-pattern touching both byte boundaries and the
	// trailing partial byte.
	for y := 0; y < 7; y++ {
		for x := 0; x < 29; x++ {
			p.SetBit(x, y, Bit((x*31+y*7)%3 == 0))
		}
	}

	got, err := Unpack(p.Pack(), 29, 7)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !got.Equal(p) {
		t.Error("unpack(pack(f)) != f")
	}
}

func TestUnpackRejectsBadLength(t *testing.T) {
	if _, err := Unpack(make([]byte, 5807), 176, 264); err == nil {
		t.Error("Unpack should reject a short buffer")
	}
	if _, err := Unpack(make([]byte, 5809), 176, 264); err == nil {
		t.Error("Unpack should reject a long buffer")
	}
}

func TestFillRectClips(t *testing.T) {
	p := New(image.Rect(0, 0, 4, 4))
	p.FillRect(image.Rect(2, 2, 10, 10), White)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := x >= 2 && y >= 2
			if got := bool(p.BitAt(x, y)); got != want {
				t.Errorf("BitAt(%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestClone(t *testing.T) {
	p := NewFilled(image.Rect(0, 0, 3, 3), White)
	c := p.Clone()
	c.SetBit(1, 1, Black)

	if p.BitAt(1, 1) != White {
		t.Error("mutating a clone changed the original")
	}
	if c.BitAt(1, 1) != Black {
		t.Error("clone did not take the write")
	}
}

func TestBitModelThreshold(t *testing.T) {
	tests := []struct {
		name string
		c    color.Color
		want Bit
	}{
		{"white", color.White, White},
		{"black", color.Black, Black},
		{"light gray", color.Gray{Y: 0xC0}, White},
		{"dark gray", color.Gray{Y: 0x40}, Black},
		{"bit passthrough", White, White},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BitModel.Convert(tt.c).(Bit); got != tt.want {
				t.Errorf("Convert(%v) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestDrawImageCompliance(t *testing.T) {
	// Standard library drawing must be able to target an Image.
	p := New(image.Rect(0, 0, 8, 8))
	draw.Draw(p, image.Rect(0, 0, 4, 8), image.NewUniform(color.White), image.Point{}, draw.Src)

	if p.BitAt(0, 0) != White || p.BitAt(3, 7) != White {
		t.Error("draw.Draw did not set the left half white")
	}
	if p.BitAt(4, 0) != Black {
		t.Error("draw.Draw spilled past the destination rect")
	}
}

func TestOutOfBoundsAccess(t *testing.T) {
	p := New(image.Rect(0, 0, 2, 2))
	p.SetBit(5, 5, White) // no-op
	if p.BitAt(5, 5) != Black {
		t.Error("out-of-bounds BitAt should return Black")
	}
}
