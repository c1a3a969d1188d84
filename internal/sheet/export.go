// Package sheet converts between templates and Excel workbooks.
//
// Export builds a workbook from a template: styled headers, per-datatype
// cell validation, dropdowns backed by a hidden list sheet, a "Guía" help
// sheet and one raw dump sheet per referenced validator. Import reads a
// workbook back into typed records checked against the same template.
package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

const (
	// ColumnWidth is applied to every data and validator sheet column.
	ColumnWidth = 20

	headerFill  = "0F1F39"
	headerFont  = "FFFFFF"
	headerRowHt = 30

	// MaxPromptLen bounds the input message attached to dropdown cells.
	MaxPromptLen = 220
	maxNoteLen   = 1000
	maxTitleLen  = 32

	defaultAuthor = "Plantilla"
)

// ExportOptions controls workbook generation.
type ExportOptions struct {
	// IncludeGuide adds the "Guía" sheet and moves field comments there
	// instead of header notes.
	IncludeGuide bool

	// ListSheet names the hidden sheet backing dropdowns.
	// Defaults to ListSheetProducer.
	ListSheet string

	// SkipValidatorSheets omits the raw validator dump sheets.
	SkipValidatorSheets bool

	// Author is shown on header notes.
	Author string

	Logger *slog.Logger
}

// ExportBytes is Export into memory.
func ExportBytes(tpl schema.Template, records []schema.Record, vs schema.ValidatorSet, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, tpl, records, vs, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export writes the workbook for tpl to w. records may be nil. vs resolves
// validator references; unresolved references are skipped, not errors.
// Records are written as given, without checking them against tpl.
func Export(w io.Writer, tpl schema.Template, records []schema.Record, vs schema.ValidatorSet, opts ExportOptions) error {
	if len(tpl.Fields) == 0 {
		return fmt.Errorf("export %q: template has no fields", tpl.Name)
	}
	if vs == nil {
		vs = schema.Validators(nil)
	}
	if opts.ListSheet == "" {
		opts.ListSheet = ListSheetProducer
	}
	if opts.Author == "" {
		opts.Author = defaultAuthor
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := excelize.NewFile()
	defer f.Close()

	e := &exporter{
		f:           f,
		tpl:         tpl,
		vs:          vs,
		opts:        opts,
		logger:      logger.With(slog.String("template", tpl.Name)),
		placeholder: f.GetSheetName(0),
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"styles", e.createStyles},
		{"guide", e.writeGuide},
		{"data sheet", e.writeHeader},
		{"validations", e.writeValidations},
		{"records", func() error { return e.writeRecords(records) }},
		{"validator sheets", e.writeValidatorSheets},
		{"finish", e.finish},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("export %q: %s: %w", tpl.Name, step.name, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export %q: write: %w", tpl.Name, err)
	}
	return nil
}

type exporter struct {
	f      *excelize.File
	tpl    schema.Template
	vs     schema.ValidatorSet
	opts   ExportOptions
	logger *slog.Logger

	// placeholder is the default sheet of a new file until it is claimed.
	placeholder string

	dataSheet string
	listSheet string
	listCols  int

	headerStyle int
	wrapStyle   int
	dateStyle   int
}

func (e *exporter) createStyles() error {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}

	var err error
	e.headerStyle, err = e.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: headerFont},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return err
	}

	e.wrapStyle, err = e.f.NewStyle(&excelize.Style{
		Border:    border,
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return err
	}

	numFmt := dateNumFmt
	e.dateStyle, err = e.f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	return err
}

// addSheet creates a sanitized, unique sheet and returns its final name.
// The first call renames the default sheet instead of adding one.
func (e *exporter) addSheet(name string) (string, error) {
	var existing []string
	for _, s := range e.f.GetSheetList() {
		if s != e.placeholder {
			existing = append(existing, s)
		}
	}
	name = UniqueSheetName(SanitizeSheetName(name), existing)

	if e.placeholder != "" {
		if err := e.f.SetSheetName(e.placeholder, name); err != nil {
			return "", err
		}
		e.placeholder = ""
		return name, nil
	}
	if _, err := e.f.NewSheet(name); err != nil {
		return "", err
	}
	return name, nil
}

// hasSheet reports whether the workbook already holds name. Excel compares
// sheet names without case.
func (e *exporter) hasSheet(name string) bool {
	for _, s := range e.f.GetSheetList() {
		if s != e.placeholder && strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// writeGuide builds the help sheet: one row per field with its type,
// whether it is required and its wrapped comment.
func (e *exporter) writeGuide() error {
	if !e.opts.IncludeGuide {
		return nil
	}
	sheet, err := e.addSheet(GuideSheet)
	if err != nil {
		return err
	}

	headers := []any{"Campo", "Tipo de dato", "Obligatorio", "Descripción"}
	if err := e.f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	if err := e.f.SetCellStyle(sheet, "A1", "D1", e.headerStyle); err != nil {
		return err
	}
	if err := e.f.SetRowHeight(sheet, 1, headerRowHt); err != nil {
		return err
	}

	for i, field := range e.tpl.Fields {
		row := i + 2
		lines := wrapText(field.Comment, guideWrapWidth)
		required := noLabel
		if field.Required {
			required = yesLabel
		}
		values := []any{field.Name, string(field.DataType), required, strings.Join(lines, "\n")}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := e.f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		end, _ := excelize.CoordinatesToCellName(4, row)
		if err := e.f.SetCellStyle(sheet, cell, end, e.wrapStyle); err != nil {
			return err
		}
		if err := e.f.SetRowHeight(sheet, row, rowHeight(len(lines))); err != nil {
			return err
		}
	}

	if err := e.f.SetColWidth(sheet, "A", "C", ColumnWidth); err != nil {
		return err
	}
	return e.f.SetColWidth(sheet, "D", "D", guideWrapWidth+2)
}

// writeHeader creates the data sheet and its styled header row.
func (e *exporter) writeHeader() error {
	sheet, err := e.addSheet(e.tpl.Name)
	if err != nil {
		return err
	}
	e.dataSheet = sheet

	for i, field := range e.tpl.Fields {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.f.SetCellValue(sheet, cell, field.Name); err != nil {
			return err
		}
		if field.DataType == schema.TypeDate {
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := e.f.SetColStyle(sheet, col, e.dateStyle); err != nil {
				return err
			}
		}
		if !e.opts.IncludeGuide && strings.TrimSpace(field.Comment) != "" {
			note := truncate(field.Comment, maxNoteLen, "...")
			if err := e.f.AddComment(sheet, excelize.Comment{
				Author: e.opts.Author,
				Cell:   cell,
				Text:   strings.Join(wrapText(note, noteWrapWidth), "\n"),
			}); err != nil {
				return err
			}
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(e.tpl.Fields), 1)
	if err := e.f.SetCellStyle(sheet, "A1", last, e.headerStyle); err != nil {
		return err
	}
	if err := e.f.SetRowHeight(sheet, 1, headerRowHt); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(e.tpl.Fields))
	return e.f.SetColWidth(sheet, "A", lastCol, ColumnWidth)
}

// writeValidations attaches one data validation per column. A column backed
// by a validator list gets the dropdown instead of its datatype rule, since
// a cell holds a single validation.
func (e *exporter) writeValidations() error {
	for i, field := range e.tpl.Fields {
		col, _ := excelize.ColumnNumberToName(i + 1)
		sqref := columnRange(col)

		dv, err := e.listValidation(field, sqref)
		if err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
		if dv == nil {
			r, ok := datatypeRules[field.DataType]
			if !ok {
				continue
			}
			if dv, err = newRuleValidation(sqref, r); err != nil {
				return fmt.Errorf("field %q: %w", field.Name, err)
			}
		}
		if err := e.f.AddDataValidation(e.dataSheet, dv); err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}
	}
	return nil
}

// listValidation returns the dropdown for a single-valued validator field,
// or nil when the field has none. Multiple fields hold comma-joined codes,
// which a list constraint cannot express, so they never get a dropdown.
func (e *exporter) listValidation(field schema.Field, sqref string) (*excelize.DataValidation, error) {
	ref, ok := field.ValidatorRef()
	if !ok || field.Multiple {
		return nil, nil
	}
	v, ok := e.vs.Lookup(ref.Validator)
	if !ok {
		e.logger.Debug("validator not found for field",
			slog.String("field", field.Name),
			slog.String("validator", ref.Validator),
		)
		return nil, nil
	}
	options := validators.OptionLabels(v, ref.Column)
	if len(options) == 0 {
		return nil, nil
	}

	listRef, err := e.appendList(field.Name, options)
	if err != nil {
		return nil, err
	}
	dv := newListValidation(sqref, listRef)
	if prompt := e.prompt(field.Comment); prompt != "" {
		dv.SetInput(truncate(field.Name, maxTitleLen, ""), prompt)
	}
	return dv, nil
}

// appendList writes options into the next free column of the list sheet
// and returns an absolute reference to them.
func (e *exporter) appendList(title string, options []string) (string, error) {
	if e.listSheet == "" {
		sheet, err := e.addSheet(e.opts.ListSheet)
		if err != nil {
			return "", err
		}
		e.listSheet = sheet
	}

	e.listCols++
	col, _ := excelize.ColumnNumberToName(e.listCols)
	if err := e.f.SetCellValue(e.listSheet, col+"1", title); err != nil {
		return "", err
	}
	for i, opt := range options {
		if err := e.f.SetCellValue(e.listSheet, fmt.Sprintf("%s%d", col, i+2), opt); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("'%s'!$%s$2:$%s$%d", e.listSheet, col, col, len(options)+1), nil
}

// prompt shortens a field comment for an input message, pointing at the
// full text when it had to cut.
func (e *exporter) prompt(comment string) string {
	comment = strings.TrimSpace(strings.ReplaceAll(comment, "\r\n", "\n"))
	if comment == "" {
		return ""
	}
	suffix := "... (ver nota del encabezado)"
	if e.opts.IncludeGuide {
		suffix = "... (ver hoja " + GuideSheet + ")"
	}
	return truncate(comment, MaxPromptLen, suffix)
}

func (e *exporter) writeRecords(records []schema.Record) error {
	for r, rec := range records {
		row := r + FirstDataRow
		for i, field := range e.tpl.Fields {
			value, ok := exportValue(field, rec[field.Name])
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := e.f.SetCellValue(e.dataSheet, cell, value); err != nil {
				return fmt.Errorf("row %d field %q: %w", row, field.Name, err)
			}
			if field.DataType == schema.TypeLink {
				if s, ok := value.(string); ok && isURL(s) {
					if err := e.f.SetCellHyperLink(e.dataSheet, cell, s, "External"); err != nil {
						return fmt.Errorf("row %d field %q: %w", row, field.Name, err)
					}
				}
			}
		}
	}
	return nil
}

// writeValidatorSheets dumps each referenced validator as a plain table.
// A validator is skipped when a sheet of its sanitized name already exists,
// so coinciding names are dumped once.
func (e *exporter) writeValidatorSheets() error {
	if e.opts.SkipValidatorSheets {
		return nil
	}
	for _, name := range e.tpl.ReferencedValidators() {
		v, ok := e.vs.Lookup(name)
		if !ok {
			continue
		}
		if e.hasSheet(SanitizeSheetName(v.Name)) {
			continue
		}
		if err := e.writeValidatorSheet(v); err != nil {
			return fmt.Errorf("validator %q: %w", v.Name, err)
		}
	}
	return nil
}

func (e *exporter) writeValidatorSheet(v schema.Validator) error {
	if len(v.Columns) == 0 {
		return nil
	}
	sheet, err := e.addSheet(v.Name)
	if err != nil {
		return err
	}

	for c, col := range v.Columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := e.f.SetCellValue(sheet, cell, col.Name); err != nil {
			return err
		}
		for r, value := range col.Values {
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := e.f.SetCellValue(sheet, cell, dumpValue(value)); err != nil {
				return err
			}
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(v.Columns), 1)
	if err := e.f.SetCellStyle(sheet, "A1", last, e.headerStyle); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(v.Columns))
	return e.f.SetColWidth(sheet, "A", lastCol, ColumnWidth)
}

// finish hides the list sheet and opens the workbook on the data sheet.
func (e *exporter) finish() error {
	if e.listSheet != "" {
		if err := e.f.SetSheetVisible(e.listSheet, false); err != nil {
			return err
		}
	}
	idx, err := e.f.GetSheetIndex(e.dataSheet)
	if err != nil {
		return err
	}
	e.f.SetActiveSheet(idx)
	return nil
}

// exportValue converts a record value into something the cell writer
// understands. It returns false for values that leave the cell empty.
func exportValue(field schema.Field, value any) (any, bool) {
	if value == nil {
		return nil, false
	}

	switch field.DataType {
	case schema.TypeDate:
		if s, ok := formatDate(value); ok {
			return s, true
		}
	case schema.TypeDateRange:
		if items, ok := value.([]any); ok {
			out := make([]any, len(items))
			for i, item := range items {
				if s, ok := formatDate(item); ok {
					out[i] = s
				} else {
					out[i] = item
				}
			}
			return marshalString(out), true
		}
	case schema.TypeBoolean:
		if b, ok := value.(bool); ok {
			if b {
				return yesLabel, true
			}
			return noLabel, true
		}
	}

	switch v := value.(type) {
	case []string:
		return strings.Join(v, ", "), true
	case []any:
		if field.Multiple {
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, schema.FormatValue(item))
			}
			return strings.Join(parts, ", "), true
		}
		return marshalString(v), true
	case map[string]any:
		return marshalString(v), true
	}
	return value, true
}

// formatDate renders time values and ISO date strings as YYYY-MM-DD.
func formatDate(value any) (string, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(dateLayout), true
	case string:
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t.Format(dateLayout), true
			}
		}
	}
	return "", false
}

// dumpValue keeps numbers numeric and flattens anything nested to JSON.
func dumpValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return marshalString(v)
	}
	return v
}

func marshalString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
