package sheet

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxSheetNameLen is the longest sheet name Excel accepts.
const MaxSheetNameLen = 31

// Fixed sheet names.
const (
	GuideSheet = "Guía"

	// ListSheetProducer backs dropdowns in workbooks handed to producers.
	ListSheetProducer = "_Listas"
	// ListSheetAdmin backs dropdowns in the administrator's template workbook.
	ListSheetAdmin = "_OpcionesValidador"

	fallbackSheetName = "Hoja"
)

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "/", "_", `\`, "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// SanitizeSheetName makes name acceptable as a sheet name: forbidden
// characters become "_", surrounding apostrophes are dropped and the
// result is cut to 31 characters. An empty result becomes "Hoja".
func SanitizeSheetName(name string) string {
	name = sheetNameReplacer.Replace(strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	name = truncateRunes(name, MaxSheetNameLen)
	name = strings.TrimRight(name, "'")
	if strings.TrimSpace(name) == "" {
		return fallbackSheetName
	}
	return name
}

// UniqueSheetName returns name, or name with a "_N" suffix, so that it does
// not collide case-insensitively with any of existing. name must already be
// sanitized.
func UniqueSheetName(name string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[strings.ToLower(s)] = true
	}
	if !taken[strings.ToLower(name)] {
		return name
	}
	for i := 1; ; i++ {
		suffix := fmt.Sprintf("_%d", i)
		candidate := truncateRunes(name, MaxSheetNameLen-utf8.RuneCountInString(suffix)) + suffix
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
