// Package schema defines the template field model shared by the workbook
// codec, the validator registry and facet derivation.
//
// A Template is an ordered list of Fields. Order is significant: it defines
// column order on export and the positional fallback on re-import.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate wraps every structural problem reported by
// Template.Validate.
var ErrInvalidTemplate = errors.New("invalid template")

// DataType is the declared type of a template field. Values are the wire
// strings stored in templates and must not be translated.
type DataType string

const (
	TypeInteger    DataType = "Entero"
	TypeDecimal    DataType = "Decimal"
	TypePercentage DataType = "Porcentaje"
	TypeShortText  DataType = "Texto Corto"
	TypeLongText   DataType = "Texto Largo"
	TypeBoolean    DataType = "True/False"
	TypeDate       DataType = "Fecha"
	TypeDateRange  DataType = "Fecha Inicial / Fecha Final"
	TypeLink       DataType = "Link"
)

// DataTypes lists every known datatype in declaration order.
var DataTypes = []DataType{
	TypeInteger, TypeDecimal, TypePercentage, TypeShortText, TypeLongText,
	TypeBoolean, TypeDate, TypeDateRange, TypeLink,
}

// Known reports whether t is one of the declared datatypes.
func (t DataType) Known() bool {
	for _, dt := range DataTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// IsDate is true for single dates and date ranges.
func (t DataType) IsDate() bool {
	return t == TypeDate || t == TypeDateRange
}

// IsNumeric is true for integer, decimal and percentage fields.
func (t DataType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDecimal || t == TypePercentage
}

// Field describes a single template column.
type Field struct {
	Name         string   `json:"name"`
	DataType     DataType `json:"datatype"`
	Required     bool     `json:"required"`
	Multiple     bool     `json:"multiple,omitempty"`
	ValidateWith string   `json:"validate_with,omitempty"`
	Comment      string   `json:"comment,omitempty"`
}

// ValidatorRef decodes the field's validate_with reference.
// Returns false if the field has no reference.
func (f Field) ValidatorRef() (ValidatorRef, bool) {
	if strings.TrimSpace(f.ValidateWith) == "" {
		return ValidatorRef{}, false
	}
	return ParseValidatorRef(f.ValidateWith), true
}

// Record maps field names to typed values: scalars, []any for multiple
// fields, or nil.
type Record map[string]any

// Template is a data-collection form: ordered fields plus metadata.
// The codec never mutates a Template.
type Template struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	FileName   string      `json:"file_name,omitempty"`
	Producers  []string    `json:"producers,omitempty"`
	Dimensions []string    `json:"dimensions,omitempty"`
	Fields     []Field     `json:"fields"`
	Validators []Validator `json:"validators,omitempty"`
}

// UnmarshalJSON accepts both the flat shape and the backend shape, where
// fields and validators are nested under "template".
func (t *Template) UnmarshalJSON(data []byte) error {
	type plain Template
	var aux struct {
		plain
		Template *struct {
			Fields     []Field     `json:"fields"`
			Validators []Validator `json:"validators"`
		} `json:"template"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Template(aux.plain)
	if aux.Template != nil {
		if len(t.Fields) == 0 {
			t.Fields = aux.Template.Fields
		}
		if len(t.Validators) == 0 {
			t.Validators = aux.Template.Validators
		}
	}
	return nil
}

// Validate checks the structural invariants of the template.
func (t Template) Validate() error {
	if len(t.Fields) == 0 {
		return fmt.Errorf("%w: template %q has no fields", ErrInvalidTemplate, t.Name)
	}

	seen := make(map[string]bool, len(t.Fields))
	var problems []string
	for i, f := range t.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("field %d has an empty name", i+1))
			continue
		}
		if seen[name] {
			problems = append(problems, fmt.Sprintf("duplicate field name %q", name))
		}
		seen[name] = true
		if f.DataType != "" && !f.DataType.Known() {
			problems = append(problems, fmt.Sprintf("field %q has unknown datatype %q", name, f.DataType))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidTemplate, t.Name, strings.Join(problems, "; "))
	}
	return nil
}

// FieldNames returns field names in template order.
func (t Template) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field with the given exact name.
func (t Template) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ReferencedValidators returns the distinct validator names referenced by
// the template's fields, in first-reference order.
func (t Template) ReferencedValidators() []string {
	var names []string
	seen := make(map[string]bool)
	for _, f := range t.Fields {
		ref, ok := f.ValidatorRef()
		if !ok || ref.Validator == "" {
			continue
		}
		key := Normalize(ref.Validator)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, ref.Validator)
	}
	return names
}
