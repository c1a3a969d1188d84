package sheet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnreadableWorkbook means the upload is not a valid .xlsx file.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
	// ErrNoDataSheet means the workbook has no visible data sheet.
	ErrNoDataSheet = errors.New("workbook has no data sheet")
	// ErrEmptySheet means the data sheet has no header row.
	ErrEmptySheet = errors.New("data sheet is empty")
	// ErrTooManyRows means the sheet holds more records than allowed.
	ErrTooManyRows = errors.New("too many rows")
)

// ColumnError describes one rejected header cell.
type ColumnError struct {
	Column  string `json:"column"`
	Cell    string `json:"cell"`
	Message string `json:"message"`
}

// HeaderError rejects a whole import because header cells do not match the
// template. Columns lists every offending header, in sheet order.
type HeaderError struct {
	Sheet   string        `json:"sheet"`
	Columns []ColumnError `json:"columns"`
	Valid   []string      `json:"valid_columns"`
}

func (e *HeaderError) Error() string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Column
	}
	return fmt.Sprintf("rejected columns in sheet %q: %s", e.Sheet, strings.Join(names, ", "))
}

func duplicateColumnMessage(column string) string {
	return fmt.Sprintf("La columna %q aparece más de una vez en el encabezado", column)
}

func unknownColumnMessage(column string, valid []string) string {
	return fmt.Sprintf("La columna %q no existe en la plantilla. Columnas válidas: %s",
		column, strings.Join(valid, ", "))
}
