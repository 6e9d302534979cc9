package render

import (
	"fmt"
	"strings"
	"time"
)

// formatPrice renders a USD price with magnitude-dependent precision,
// trimming trailing zeros. Small-cap token prices need many decimals to be
// meaningful.
func formatPrice(p float64) string {
	var s string
	switch {
	case p >= 1:
		s = "$" + groupThousands(fmt.Sprintf("%.2f", p))
	case p >= 0.01:
		s = fmt.Sprintf("$%.4f", p)
	case p >= 0.0001:
		s = fmt.Sprintf("$%.6f", p)
	default:
		s = fmt.Sprintf("$%.8f", p)
	}
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// groupThousands inserts comma separators into the integer part of a
// fixed-point decimal string.
func groupThousands(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead == 0 {
			lead = 3
		}
		b.WriteString(intPart[:lead])
		for i := lead; i < len(intPart); i += 3 {
			b.WriteByte(',')
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if hasFrac {
		return intPart + "." + frac
	}
	return intPart
}

// formatCompact renders large dollar amounts with K/M/B suffixes.
func formatCompact(n float64) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.2fB", n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.2fM", n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.2fK", n/1e3)
	default:
		return fmt.Sprintf("%.2f", n)
	}
}

// formatChange renders a 24h change with sign and arrow glyph.
func formatChange(pct float64) (arrow, text string) {
	arrow = "▲"
	sign := "+"
	if pct < 0 {
		arrow = "▼"
		sign = ""
	}
	return arrow, fmt.Sprintf("%s%.2f%%", sign, pct)
}

// formatStatus renders the footer freshness tag.
func formatStatus(stale time.Duration) string {
	if stale <= 0 {
		return "LIVE"
	}
	if stale < time.Minute {
		return fmt.Sprintf("STALE %ds", int(stale.Seconds()))
	}
	return fmt.Sprintf("STALE %dm", int(stale.Minutes()))
}
