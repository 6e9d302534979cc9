package render

import (
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Candidate TrueType locations, tried in order. The pixel font is the
// last-resort fallback so rendering works on any box.
var fontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
}

// fontSet holds the faces for the layout's text sizes.
type fontSet struct {
	xlarge font.Face // price
	large  font.Face // change arrow
	medium font.Face // header, stats
	small  font.Face // footer time
	tiny   font.Face // footer status
}

func loadFace(points float64) font.Face {
	for _, path := range fontPaths {
		if face, err := gg.LoadFontFace(path, points); err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

func loadFonts() *fontSet {
	return &fontSet{
		xlarge: loadFace(48),
		large:  loadFace(32),
		medium: loadFace(18),
		small:  loadFace(14),
		tiny:   loadFace(12),
	}
}
