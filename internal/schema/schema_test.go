package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseValidatorRef(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantValidator string
		wantColumn    string
	}{
		{"standard", "SEXO_BIOLOGICO - ID_SEXO", "SEXO_BIOLOGICO", "ID_SEXO"},
		{"column with separator", "PAIS - ID - ISO", "PAIS", "ID - ISO"},
		{"bare validator", "MUNICIPIO", "MUNICIPIO", ""},
		{"surrounding spaces", "  ETNIA  -  CODIGO ", "ETNIA", "CODIGO"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseValidatorRef(tt.input)
			if got.Validator != tt.wantValidator {
				t.Errorf("Validator = %q, want %q", got.Validator, tt.wantValidator)
			}
			if got.Column != tt.wantColumn {
				t.Errorf("Column = %q, want %q", got.Column, tt.wantColumn)
			}
		})
	}
}

func TestValidatorRef_String(t *testing.T) {
	ref := ValidatorRef{Validator: "PAIS", Column: "ID_PAIS"}
	if got := ref.String(); got != "PAIS - ID_PAIS" {
		t.Errorf("String() = %q, want %q", got, "PAIS - ID_PAIS")
	}
	if got := ParseValidatorRef(ref.String()); got != ref {
		t.Errorf("ParseValidatorRef(String()) = %+v, want %+v", got, ref)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Sexo biológico", "SEXO BIOLOGICO"},
		{"  Guía   de   campos ", "GUIA DE CAMPOS"},
		{"Descripción", "DESCRIPCION"},
		{"año\tñandú", "ANO NANDU"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTemplate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		wantErr bool
	}{
		{
			name:   "valid",
			fields: []Field{{Name: "NOMBRE", DataType: TypeShortText}, {Name: "EDAD", DataType: TypeInteger}},
		},
		{
			name:    "duplicate names",
			fields:  []Field{{Name: "NOMBRE"}, {Name: "NOMBRE"}},
			wantErr: true,
		},
		{
			name:    "empty name",
			fields:  []Field{{Name: " "}},
			wantErr: true,
		},
		{
			name:    "unknown datatype",
			fields:  []Field{{Name: "X", DataType: "Moneda"}},
			wantErr: true,
		},
		{
			name:    "no fields",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Template{Name: "t", Fields: tt.fields}.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("Validate() error = %v, want ErrInvalidTemplate", err)
			}
		})
	}
}

func TestTemplate_ReferencedValidators(t *testing.T) {
	tpl := Template{Fields: []Field{
		{Name: "A", ValidateWith: "PAIS - ID_PAIS"},
		{Name: "B", ValidateWith: "país - NOMBRE"},
		{Name: "C"},
		{Name: "D", ValidateWith: "SEXO_BIOLOGICO - ID_SEXO"},
	}}

	got := tpl.ReferencedValidators()
	want := []string{"PAIS", "SEXO_BIOLOGICO"}
	if len(got) != len(want) {
		t.Fatalf("ReferencedValidators() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ReferencedValidators()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTemplate_UnmarshalBackendShape(t *testing.T) {
	data := []byte(`{
		"name": "Graduados",
		"template": {
			"fields": [{"name": "NOMBRE", "datatype": "Texto Corto", "required": true}],
			"validators": [{"name": "PAIS", "columns": [{"name": "ID", "is_validator": true, "values": [1, 2]}]}]
		}
	}`)

	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if tpl.Name != "Graduados" {
		t.Errorf("Name = %q, want %q", tpl.Name, "Graduados")
	}
	if len(tpl.Fields) != 1 || tpl.Fields[0].DataType != TypeShortText {
		t.Errorf("Fields = %+v, want one Texto Corto field", tpl.Fields)
	}
	if len(tpl.Validators) != 1 || tpl.Validators[0].Name != "PAIS" {
		t.Errorf("Validators = %+v, want PAIS", tpl.Validators)
	}
}

func TestValidator_Columns(t *testing.T) {
	v := Validator{
		Name: "SEXO_BIOLOGICO",
		Columns: []Column{
			{Name: "ID_SEXO", IsValidator: true, Values: []any{1.0, 2.0}},
			{Name: "OBSERVACION", Values: []any{"", ""}},
			{Name: "Descripción", Values: []any{"Masculino", "Femenino"}},
		},
	}

	id, ok := v.IdentifierColumn()
	if !ok || id.Name != "ID_SEXO" {
		t.Errorf("IdentifierColumn() = %q, %v", id.Name, ok)
	}
	desc, ok := v.DescriptionColumn()
	if !ok || desc.Name != "Descripción" {
		t.Errorf("DescriptionColumn() = %q, %v", desc.Name, ok)
	}
	if _, ok := (Validators{v}).Lookup("sexo_biológico"); !ok {
		t.Error("Lookup() should match ignoring case and accents")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		input any
		want  string
	}{
		{1.0, "1"},
		{2.5, "2.5"},
		{" AB ", "AB"},
		{nil, ""},
		{int64(7), "7"},
		{true, "true"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.input); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
