package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/reportsheets/internal/schema"
)

// Data validations cover rows FirstDataRow..MaxDataRow of every column.
const (
	FirstDataRow = 2
	MaxDataRow   = 1000
)

const (
	maxNumber = 9999999999

	// Excel serial numbers of 1900-01-01 and 9999-12-31.
	minDateSerial = 1
	maxDateSerial = 2958465

	errorTitle = "Valor no válido"
	listError  = "Por favor, selecciona un valor de la lista."

	dateNumFmt = "dd/mm/yyyy"

	yesLabel = "Si"
	noLabel  = "No"
)

// rule is the cell validation applied to a datatype column.
type rule struct {
	kind    excelize.DataValidationType
	op      excelize.DataValidationOperator
	min     any
	max     any
	list    []string
	message string
}

var datatypeRules = map[schema.DataType]rule{
	schema.TypeInteger: {
		kind: excelize.DataValidationTypeWhole, op: excelize.DataValidationOperatorBetween,
		min: 1, max: maxNumber,
		message: "Por favor, introduce un numero entero.",
	},
	schema.TypeDecimal: {
		kind: excelize.DataValidationTypeDecimal, op: excelize.DataValidationOperatorBetween,
		min: 0.0, max: float64(maxNumber),
		message: "Por favor, introduce un numero decimal.",
	},
	schema.TypePercentage: {
		kind: excelize.DataValidationTypeDecimal, op: excelize.DataValidationOperatorBetween,
		min: 0.0, max: 100.0,
		message: "Por favor, introduce un porcentaje entre 0 y 100.",
	},
	schema.TypeShortText: {
		kind: excelize.DataValidationTypeTextLength, op: excelize.DataValidationOperatorLessThanOrEqual,
		min: 60, max: 60,
		message: "El texto no puede superar los 60 caracteres.",
	},
	schema.TypeLongText: {
		kind: excelize.DataValidationTypeTextLength, op: excelize.DataValidationOperatorLessThanOrEqual,
		min: 500, max: 500,
		message: "El texto no puede superar los 500 caracteres.",
	},
	schema.TypeBoolean: {
		list:    []string{yesLabel, noLabel},
		message: "Por favor, selecciona Si o No.",
	},
	schema.TypeDate: {
		kind: excelize.DataValidationTypeDate, op: excelize.DataValidationOperatorBetween,
		min: minDateSerial, max: maxDateSerial,
		message: "Por favor, introduce una fecha valida (DD/MM/AAAA).",
	},
	schema.TypeDateRange: {
		kind: excelize.DataValidationTypeDate, op: excelize.DataValidationOperatorBetween,
		min: minDateSerial, max: maxDateSerial,
		message: "Por favor, introduce una fecha valida (DD/MM/AAAA).",
	},
	schema.TypeLink: {
		kind: excelize.DataValidationTypeTextLength, op: excelize.DataValidationOperatorGreaterThan,
		min: 0, max: 0,
		message: "Por favor, introduce un enlace.",
	},
}

// columnRange is the validated body range of a column, e.g. "C2:C1000".
func columnRange(col string) string {
	return fmt.Sprintf("%s%d:%s%d", col, FirstDataRow, col, MaxDataRow)
}

// newRuleValidation builds the data validation for r over sqref.
func newRuleValidation(sqref string, r rule) (*excelize.DataValidation, error) {
	dv := excelize.NewDataValidation(true)
	dv.Sqref = sqref
	if r.list != nil {
		if err := dv.SetDropList(r.list); err != nil {
			return nil, err
		}
	} else if err := dv.SetRange(r.min, r.max, r.kind, r.op); err != nil {
		return nil, err
	}
	dv.SetError(excelize.DataValidationErrorStyleStop, errorTitle, r.message)
	return dv, nil
}

// newListValidation builds a dropdown over sqref backed by the cells in ref.
func newListValidation(sqref, ref string) *excelize.DataValidation {
	dv := excelize.NewDataValidation(true)
	dv.Sqref = sqref
	dv.SetSqrefDropList(ref)
	dv.SetError(excelize.DataValidationErrorStyleStop, errorTitle, listError)
	return dv
}
