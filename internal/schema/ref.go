package schema

import "strings"

// refSeparator joins validator and column names in a validate_with value.
const refSeparator = " - "

// ValidatorRef is the decoded form of a field's validate_with value,
// "<validator> - <column>". The encoding is free text, so resolution
// against the registry is best-effort.
type ValidatorRef struct {
	Validator string
	Column    string
}

// ParseValidatorRef splits on the first " - ": the first segment is the
// validator name and the remainder is the column name. A value without a
// separator is treated as a bare validator name.
func ParseValidatorRef(s string) ValidatorRef {
	s = strings.TrimSpace(s)
	name, column, found := strings.Cut(s, refSeparator)
	if !found {
		return ValidatorRef{Validator: s}
	}
	return ValidatorRef{
		Validator: strings.TrimSpace(name),
		Column:    strings.TrimSpace(column),
	}
}

// String encodes the reference back to its stored form.
func (r ValidatorRef) String() string {
	if r.Column == "" {
		return r.Validator
	}
	return r.Validator + refSeparator + r.Column
}
