package formatter

import (
	"strings"
)

// EscapeMarkdownV2 escapes special characters in Markdown V2 format
func EscapeMarkdownV2(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ProgressBar renders fraction in [0,1] as a fixed width bar.
// Example: ProgressBar(0.5, 4) -> "██░░"
func ProgressBar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// ProgressBars joins one bar per story, separated by a space.
func ProgressBars(fractions []float64, width int) string {
	bars := make([]string, len(fractions))
	for i, f := range fractions {
		bars[i] = ProgressBar(f, width)
	}
	return strings.Join(bars, " ")
}

// ShortAddress abbreviates a wallet address: 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
