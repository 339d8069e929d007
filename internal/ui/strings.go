package ui

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// truncate shortens a string to the given limit, adding ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// truncateMiddle shortens a string by removing characters from the middle,
// keeping both ends visible.
func truncateMiddle(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || value == "" {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	keep := limit - 1
	prefix := keep / 2
	suffix := keep - prefix
	return string(runes[:prefix]) + "…" + string(runes[len(runes)-suffix:])
}

// padRight pads a string with spaces to the given width, truncating values
// that are too long.
func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) > width {
		return truncate(s, width)
	}
	return s + strings.Repeat(" ", width-len(r))
}

// singleLine collapses whitespace so multi-line bodies fit in a cell.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatCount renders a counter with thousands separators.
func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

// formatRate renders part/total as a percentage.
func formatRate(part, total int) string {
	if total <= 0 {
		return "0%"
	}
	return humanize.FtoaWithDigits(float64(part)*100/float64(total), 1) + "%"
}

// formatAgo renders an optional timestamp relative to now.
func formatAgo(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return humanize.Time(*t)
}

// formatClock renders a timestamp as local wall time, or "-" when unset.
func formatClock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatBytesRate renders a bytes-per-second figure.
func formatBytesRate(bps float64) string {
	if bps <= 0 {
		return "0 B/s"
	}
	return humanize.Bytes(uint64(bps)) + "/s"
}

// orDash returns "-" for blank values.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ternary returns a if cond is true, otherwise b.
func ternary(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
