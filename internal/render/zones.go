package render

import "image"

// Zone is one of the fixed rectangular regions of the 264x176 landscape
// layout. The header is static (drawn on full refreshes only and preserved
// across partial updates); the rest are dynamic and redrawn every render.
type Zone int

const (
	ZoneHeader Zone = iota
	ZonePrice
	ZoneChange
	ZoneStats
	ZoneFooter
	zoneCount
)

// String returns the zone name.
func (z Zone) String() string {
	switch z {
	case ZoneHeader:
		return "header"
	case ZonePrice:
		return "price"
	case ZoneChange:
		return "change"
	case ZoneStats:
		return "stats"
	case ZoneFooter:
		return "footer"
	default:
		return "unknown"
	}
}

var zoneRects = [zoneCount]image.Rectangle{
	ZoneHeader: image.Rect(0, 0, 264, 28),
	ZonePrice:  image.Rect(10, 32, 150, 97),
	ZoneChange: image.Rect(155, 32, 255, 97),
	ZoneStats:  image.Rect(10, 102, 254, 152),
	ZoneFooter: image.Rect(0, 156, 264, 176),
}

// Rect returns the zone rectangle.
func (z Zone) Rect() image.Rectangle {
	return zoneRects[z]
}

// Dynamic reports whether the zone is redrawn on every render.
func (z Zone) Dynamic() bool {
	return z != ZoneHeader
}

// dynamicZones lists the zones cleared and redrawn on partial updates, in
// draw order.
var dynamicZones = []Zone{ZonePrice, ZoneChange, ZoneStats, ZoneFooter}
