package validators

import (
	"regexp"

	"github.com/JonMunkholm/reportsheets/internal/schema"
)

var tokenSplitRe = regexp.MustCompile(`[^A-Z0-9]+`)

// stopTokens carry no meaning when comparing field and validator names.
var stopTokens = map[string]bool{
	"ID": true, "DE": true, "DEL": true, "LA": true, "EL": true, "LOS": true,
	"LAS": true, "Y": true, "COD": true, "CODIGO": true, "TIPO": true,
}

// MatchValidator finds the validator that best explains values observed
// for fieldName. The exact mapping table wins when it resolves. Otherwise
// every validator whose identifier column contains all values is a
// candidate, ranked by keyword overlap with the field name; ties keep the
// first candidate in registry order.
//
// The ranking is a heuristic and can pick the wrong table for ambiguous
// field names.
func (r *Registry) MatchValidator(fieldName string, values []string) (schema.Validator, bool) {
	if name, ok := r.ResolveValidatorName(fieldName); ok {
		if v, ok := r.Lookup(name); ok {
			return v, true
		}
	}

	observed := distinctNonEmpty(values)
	if len(observed) == 0 {
		return schema.Validator{}, false
	}

	var (
		best      schema.Validator
		bestScore = -1
	)
	for _, v := range r.All() {
		if !containsAll(v, observed) {
			continue
		}
		score := NameSimilarity(fieldName, v.Name)
		if score > bestScore {
			best, bestScore = v, score
		}
	}
	return best, bestScore >= 0
}

// NameSimilarity counts the meaningful keywords shared by two names.
func NameSimilarity(a, b string) int {
	left := tokens(a)
	if len(left) == 0 {
		return 0
	}
	score := 0
	for t := range tokens(b) {
		if left[t] {
			score++
		}
	}
	return score
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tokenSplitRe.Split(schema.Normalize(s), -1) {
		if t == "" || stopTokens[t] {
			continue
		}
		out[t] = true
	}
	return out
}

func containsAll(v schema.Validator, values []string) bool {
	idCol, ok := v.IdentifierColumn()
	if !ok {
		return false
	}
	ids := make(map[string]bool, len(idCol.Values))
	for _, raw := range idCol.Values {
		ids[schema.FormatValue(raw)] = true
	}
	for _, val := range values {
		if !ids[val] {
			return false
		}
	}
	return true
}

func distinctNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
