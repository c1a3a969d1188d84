package validators

import (
	"regexp"

	"github.com/JonMunkholm/reportsheets/internal/schema"
)

// Option is an observed value paired with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var (
	yesNoRe     = regexp.MustCompile(`^[SN]$`)
	shortCodeRe = regexp.MustCompile(`^\d{1,3}$`)
	twoLetterRe = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// Labels for the S/N short-circuit.
const (
	LabelYes = "S - Sí"
	LabelNo  = "N - No"
)

// EnrichValues labels the observed values of a field:
//
//  1. all S/N values are labelled "S - Sí" / "N - No";
//  2. batches that are neither short numeric codes nor 2-letter codes are
//     returned unchanged;
//  3. otherwise the field is resolved through the exact mapping table and
//     each value becomes "<value> - <description>" when the validator has
//     a matching row.
//
// Values that do not resolve keep their raw value as label.
func (r *Registry) EnrichValues(fieldName string, values []string) []Option {
	if opts, ok := enrichYesNo(values); ok {
		return opts
	}
	if !looksLikeCodes(values) {
		return unchanged(values)
	}

	name, ok := r.ResolveValidatorName(fieldName)
	if !ok {
		return unchanged(values)
	}
	v, ok := r.Lookup(name)
	if !ok {
		return unchanged(values)
	}
	return enrichWith(v, values)
}

// EnrichValuesLoose behaves like EnrichValues but falls back to structural
// matching with name scoring when the exact table has no entry.
func (r *Registry) EnrichValuesLoose(fieldName string, values []string) []Option {
	if opts, ok := enrichYesNo(values); ok {
		return opts
	}
	if !looksLikeCodes(values) {
		return unchanged(values)
	}

	v, ok := r.MatchValidator(fieldName, values)
	if !ok {
		return unchanged(values)
	}
	return enrichWith(v, values)
}

// enrichWith builds the positional id -> description map of v and labels
// values with it.
func enrichWith(v schema.Validator, values []string) []Option {
	idCol, ok := v.IdentifierColumn()
	if !ok {
		return unchanged(values)
	}
	descCol, ok := v.DescriptionColumn()
	if !ok {
		return unchanged(values)
	}

	descriptions := describeByID(idCol, descCol)
	out := make([]Option, len(values))
	for i, val := range values {
		out[i] = Option{Value: val, Label: val}
		if desc, ok := descriptions[val]; ok && desc != "" {
			out[i].Label = val + " - " + desc
		}
	}
	return out
}

// describeByID pairs index i of the id column with index i of the
// description column. Missing description entries leave the id unlabelled
// rather than shifting later rows.
func describeByID(idCol, descCol schema.Column) map[string]string {
	m := make(map[string]string, len(idCol.Values))
	for i, raw := range idCol.Values {
		id := schema.FormatValue(raw)
		if id == "" {
			continue
		}
		if _, exists := m[id]; exists {
			continue
		}
		desc := ""
		if i < len(descCol.Values) {
			desc = schema.FormatValue(descCol.Values[i])
		}
		m[id] = desc
	}
	return m
}

func enrichYesNo(values []string) ([]Option, bool) {
	if len(values) == 0 || !allMatch(values, yesNoRe) {
		return nil, false
	}
	out := make([]Option, len(values))
	for i, v := range values {
		label := LabelNo
		if v == "S" {
			label = LabelYes
		}
		out[i] = Option{Value: v, Label: label}
	}
	return out, true
}

func looksLikeCodes(values []string) bool {
	if len(values) == 0 {
		return false
	}
	return allMatch(values, shortCodeRe) || allMatch(values, twoLetterRe)
}

func allMatch(values []string, re *regexp.Regexp) bool {
	for _, v := range values {
		if !re.MatchString(v) {
			return false
		}
	}
	return true
}

func unchanged(values []string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: v}
	}
	return out
}
