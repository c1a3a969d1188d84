// Package facets derives UI filter definitions from template fields and a
// sample of live records.
package facets

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

// InputType is the UI control a filter renders as.
type InputType string

const (
	InputDate         InputType = "date"
	InputRadio        InputType = "radio"
	InputDropdown     InputType = "dropdown"
	InputAutocomplete InputType = "autocomplete"
	InputMultiselect  InputType = "multiselect"
)

// Cardinality thresholds.
const (
	MaxCodedRadio = 20
	MaxRadio      = 5
	MaxDropdown   = 10
)

// Filter is the derived definition for one field.
type Filter struct {
	FieldName string              `json:"field_name"`
	InputType InputType           `json:"input_type"`
	Options   []validators.Option `json:"options,omitempty"`
}

// Enricher labels observed values. *validators.Registry implements it.
type Enricher interface {
	EnrichValuesLoose(fieldName string, values []string) []validators.Option
}

var (
	shortCodeRe   = regexp.MustCompile(`^\d{1,3}$`)
	nameTokenRe   = regexp.MustCompile(`[^A-Z0-9]+`)
	dateNameWords = []string{"FECHA", "DATE"}

	// codedNameWords mark fields that usually hold validator codes.
	codedNameWords = []string{
		"TIPO", "ESTADO", "SEXO", "CIVIL", "FUENTE", "PAIS",
		"MOVILIDAD", "IMPACTO", "ESTRATEGIA",
	}
)

// Derive returns one filter per field, in field order. enricher may be nil,
// in which case option labels equal their values.
func Derive(fields []schema.Field, records []schema.Record, enricher Enricher) []Filter {
	out := make([]Filter, 0, len(fields))
	for _, field := range fields {
		out = append(out, deriveField(field, records, enricher))
	}
	return out
}

func deriveField(field schema.Field, records []schema.Record, enricher Enricher) Filter {
	filter := Filter{FieldName: field.Name}
	if field.DataType.IsDate() || isDateName(field.Name) {
		filter.InputType = InputDate
		return filter
	}

	values := observedValues(field.Name, records)
	filter.InputType = chooseInput(field, values)
	filter.Options = label(field.Name, values, enricher)
	return filter
}

// chooseInput applies the control heuristics to the distinct values.
func chooseInput(field schema.Field, values []string) InputType {
	n := len(values)
	switch {
	case field.Multiple:
		return InputMultiselect
	case n == 0:
		return InputAutocomplete
	case isCodedName(field.Name) && allShortCodes(values) && n <= MaxCodedRadio:
		return InputRadio
	case n <= MaxRadio:
		return InputRadio
	case n <= MaxDropdown:
		return InputDropdown
	default:
		return InputAutocomplete
	}
}

func label(fieldName string, values []string, enricher Enricher) []validators.Option {
	if len(values) == 0 {
		return nil
	}
	if enricher != nil {
		return enricher.EnrichValuesLoose(fieldName, values)
	}
	opts := make([]validators.Option, len(values))
	for i, v := range values {
		opts[i] = validators.Option{Value: v, Label: v}
	}
	return opts
}

// observedValues collects the distinct non-empty values of a field,
// flattening multi-value arrays, sorted numbers first.
func observedValues(fieldName string, records []schema.Record) []string {
	seen := make(map[string]bool)
	var values []string
	add := func(v any) {
		s := schema.FormatValue(v)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		values = append(values, s)
	}

	for _, rec := range records {
		switch v := rec[fieldName].(type) {
		case []any:
			for _, item := range v {
				add(item)
			}
		case []string:
			for _, item := range v {
				add(item)
			}
		default:
			add(v)
		}
	}

	sort.SliceStable(values, func(i, j int) bool {
		a, aErr := strconv.ParseFloat(values[i], 64)
		b, bErr := strconv.ParseFloat(values[j], 64)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return values[i] < values[j]
		}
	})
	return values
}

func isDateName(name string) bool {
	n := schema.Normalize(name)
	for _, w := range dateNameWords {
		if strings.Contains(n, w) {
			return true
		}
	}
	return false
}

// isCodedName matches an ID token or any of the coded keywords.
func isCodedName(name string) bool {
	n := schema.Normalize(name)
	for _, t := range nameTokenRe.Split(n, -1) {
		if t == "ID" {
			return true
		}
	}
	for _, w := range codedNameWords {
		if strings.Contains(n, w) {
			return true
		}
	}
	return false
}

func allShortCodes(values []string) bool {
	for _, v := range values {
		if !shortCodeRe.MatchString(v) {
			return false
		}
	}
	return true
}
