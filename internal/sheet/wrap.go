package sheet

import (
	"strings"
	"unicode/utf8"
)

// Wrap widths, in characters.
const (
	guideWrapWidth = 90
	noteWrapWidth  = 44

	lineHeight = 15.0
)

// wrapText breaks s into lines of at most width characters, splitting on
// spaces where possible. Line endings are normalized to "\n" and existing
// line breaks are kept.
func wrapText(s string, width int) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var lines []string
	for _, paragraph := range strings.Split(s, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var line strings.Builder
		lineLen := 0
		for _, w := range words {
			for utf8.RuneCountInString(w) > width {
				if lineLen > 0 {
					lines = append(lines, line.String())
					line.Reset()
					lineLen = 0
				}
				r := []rune(w)
				lines = append(lines, string(r[:width]))
				w = string(r[width:])
			}
			wl := utf8.RuneCountInString(w)
			if lineLen > 0 && lineLen+1+wl > width {
				lines = append(lines, line.String())
				line.Reset()
				lineLen = 0
			}
			if lineLen > 0 {
				line.WriteByte(' ')
				lineLen++
			}
			line.WriteString(w)
			lineLen += wl
		}
		if lineLen > 0 {
			lines = append(lines, line.String())
		}
	}
	return lines
}

// rowHeight estimates the height of a row showing n wrapped lines.
func rowHeight(n int) float64 {
	if n < 1 {
		n = 1
	}
	return float64(n) * lineHeight
}

// truncate cuts s to max characters, appending suffix when it had to cut.
// The result including suffix never exceeds max.
func truncate(s string, max int, suffix string) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	return strings.TrimSpace(string([]rune(s)[:keep])) + suffix
}
