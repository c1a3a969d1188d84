package sheet

// coerce.go turns raw cell text into typed record values.
//
// Coercion never fails: a value that does not parse as its field's datatype
// is kept as the original string so the backend can report it.

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/reportsheets/internal/schema"
)

const (
	dateLayout = "2006-01-02"

	// ISOLayout is the timestamp format of imported dates.
	ISOLayout = "2006-01-02T15:04:05.000Z"

	errorPrefix = "ERROR: "
)

var (
	intPrefixRe   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefixRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

// Date layouts. Day comes before month, matching the dd/mm/yyyy display
// format the export applies to date columns.
var (
	isoLayouts = []string{
		time.RFC3339Nano,
		ISOLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		dateLayout,
	}
	fourDigitYearLayouts = []string{
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"2006/01/02", "2006.01.02",
		"2 Jan 2006", "Jan 2, 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
)

// cellInput is one non-empty cell as read from the sheet.
type cellInput struct {
	raw  string
	kind excelize.CellType
	link string
}

// convertCell produces the record value for a cell of field. lookup maps
// normalized labels to validator codes and may be nil.
func convertCell(field schema.Field, in cellInput, lookup map[string]string) any {
	if in.kind == excelize.CellTypeError {
		return errorPrefix + in.raw
	}
	if field.DataType == schema.TypeLink && in.link != "" {
		return in.link
	}
	if field.Multiple {
		return splitMultiple(in.raw)
	}

	raw := in.raw
	if lookup != nil {
		if code, ok := lookup[schema.Normalize(raw)]; ok {
			raw = code
		}
	}

	switch field.DataType {
	case schema.TypeInteger:
		return parseIntPrefix(raw)
	case schema.TypeDecimal, schema.TypePercentage:
		return parseFloatPrefix(raw)
	case schema.TypeDate:
		if t, ok := parseDate(raw, in.kind); ok {
			return t.UTC().Format(ISOLayout)
		}
		return raw
	case schema.TypeBoolean:
		return parseBool(raw, in.kind)
	case schema.TypeDateRange:
		return parseDateRange(raw)
	default:
		return raw
	}
}

// splitMultiple splits a comma-joined cell into trimmed, non-empty parts.
// Parts are not coerced to the field's datatype.
func splitMultiple(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseIntPrefix reads the leading integer of s ("12abc" is 12, "3.7" is 3).
// Without one, s is returned unchanged.
func parseIntPrefix(s string) any {
	m := intPrefixRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return s
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return s
	}
	return n
}

// parseFloatPrefix reads the leading decimal number of s.
// Without one, s is returned unchanged.
func parseFloatPrefix(s string) any {
	m := floatPrefixRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return s
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return s
	}
	return f
}

// parseBool is true for "si" in any case or accent, or a boolean cell
// holding true. Everything else is false.
func parseBool(s string, kind excelize.CellType) bool {
	if kind == excelize.CellTypeBool {
		return s == "1" || strings.EqualFold(s, "TRUE")
	}
	return strings.EqualFold(schema.StripDiacritics(strings.TrimSpace(s)), "si")
}

// parseDate accepts Excel serial numbers from numeric cells and the text
// layouts above.
func parseDate(s string, kind excelize.CellType) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if kind != excelize.CellTypeSharedString && kind != excelize.CellTypeInlineString {
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			t, err := excelize.ExcelDateToTime(serial, false)
			if err == nil {
				return t, true
			}
		}
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDateRange expects a JSON array of exactly two elements.
func parseDateRange(s string) any {
	var pair []any
	if err := json.Unmarshal([]byte(s), &pair); err != nil || len(pair) != 2 {
		return s
	}
	return pair
}

// sanitizeValue flattens nested objects to JSON strings so a record never
// carries maps, at the top level or inside arrays.
func sanitizeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return marshalString(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			switch item.(type) {
			case map[string]any, []any:
				out[i] = marshalString(item)
			default:
				out[i] = item
			}
		}
		return out
	}
	return v
}
