package schema

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize prepares free text for loose comparison:
// diacritics stripped, whitespace collapsed, upper-cased.
//
//	Normalize("  Sexo  biológico ") == "SEXO BIOLOGICO"
func Normalize(s string) string {
	s = StripDiacritics(strings.TrimSpace(s))
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.ToUpper(s)
}

// StripDiacritics removes combining marks after NFD decomposition,
// so "Guía" becomes "Guia".
func StripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SameName reports whether two names are equal ignoring case, accents
// and surrounding whitespace.
func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
