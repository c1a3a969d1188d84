package schema

import (
	"fmt"
	"strings"
)

// Column is one column of a validator lookup table. Values across the
// columns of a validator are positionally aligned: index i of the
// identifier column pairs with index i of every other column.
type Column struct {
	Name        string `json:"name"`
	IsValidator bool   `json:"is_validator"`
	Values      []any  `json:"values"`
}

// Validator is a named lookup table of coded values.
type Validator struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// IdentifierColumn returns the column flagged is_validator.
func (v Validator) IdentifierColumn() (Column, bool) {
	for _, c := range v.Columns {
		if c.IsValidator {
			return c, true
		}
	}
	return Column{}, false
}

// DescriptionColumn guesses the human-readable column by name: the first
// non-identifier column whose name contains DESCRIPCION or NOMBRE, or
// starts with DESC.
func (v Validator) DescriptionColumn() (Column, bool) {
	for _, c := range v.Columns {
		if c.IsValidator {
			continue
		}
		name := Normalize(c.Name)
		if strings.Contains(name, "DESCRIPCION") ||
			strings.Contains(name, "NOMBRE") ||
			strings.HasPrefix(name, "DESC") {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName finds a column by loose name comparison.
func (v Validator) ColumnByName(name string) (Column, bool) {
	for _, c := range v.Columns {
		if SameName(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// RowCount is the length of the longest column.
func (v Validator) RowCount() int {
	n := 0
	for _, c := range v.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// ValidatorSet resolves validators by name.
type ValidatorSet interface {
	Lookup(name string) (Validator, bool)
}

// Validators is a plain slice that satisfies ValidatorSet.
type Validators []Validator

// Lookup matches names ignoring case and accents.
func (vs Validators) Lookup(name string) (Validator, bool) {
	for _, v := range vs {
		if SameName(v.Name, name) {
			return v, true
		}
	}
	return Validator{}, false
}

// FormatValue renders a raw cell value from a validator column as text.
// JSON numbers decode as float64, so integral floats drop their fraction.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	case float32:
		return FormatValue(float64(x))
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
