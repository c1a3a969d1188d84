package sheet

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

// ImportOptions controls workbook parsing.
type ImportOptions struct {
	// MaxRows caps the number of records. Zero means no limit.
	MaxRows int

	Logger *slog.Logger
}

// ImportResult holds the records parsed from a workbook.
type ImportResult struct {
	Sheet string `json:"sheet"`
	// Columns are the template fields found in the sheet, in sheet order.
	Columns     []string        `json:"columns"`
	Records     []schema.Record `json:"records"`
	RowsRead    int             `json:"rows_read"`
	SkippedRows int             `json:"skipped_rows"`
}

// Import parses the data sheet of the workbook in r into records of tpl.
//
// The data sheet is the first visible sheet other than the guide. Every
// non-empty header must name a template field or the import fails with a
// *HeaderError listing all of them. Cells that do not fit their datatype
// keep their text; they never fail the import.
func Import(r io.Reader, tpl schema.Template, vs schema.ValidatorSet, opts ImportOptions) (*ImportResult, error) {
	if vs == nil {
		vs = schema.Validators(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheet, err := dataSheet(f)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	columns, err := mapColumns(sheet, rows[0], width, tpl)
	if err != nil {
		return nil, err
	}

	lookups := reverseLookups(columns, vs, logger)

	result := &ImportResult{Sheet: sheet}
	for _, field := range columns {
		if field != nil {
			result.Columns = append(result.Columns, field.Name)
		}
	}

	for r := 1; r < len(rows); r++ {
		result.RowsRead++
		rec, empty, err := readRow(f, sheet, r+1, rows[r], columns, lookups)
		if err != nil {
			return nil, err
		}
		if empty {
			result.SkippedRows++
			continue
		}
		if opts.MaxRows > 0 && len(result.Records) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: more than %d records", ErrTooManyRows, opts.MaxRows)
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// dataSheet picks the first visible sheet that is not the guide.
func dataSheet(f *excelize.File) (string, error) {
	for _, name := range f.GetSheetList() {
		if name == GuideSheet {
			continue
		}
		visible, err := f.GetSheetVisible(name)
		if err != nil || !visible {
			continue
		}
		return name, nil
	}
	return "", ErrNoDataSheet
}

// mapColumns resolves each sheet column to a template field. Headers must
// match a field name exactly; unknown and repeated headers reject the whole
// sheet. An empty header takes the field at the same position when that
// field is not named elsewhere. Columns that resolve to nothing are nil and
// ignored.
func mapColumns(sheet string, header []string, width int, tpl schema.Template) ([]*schema.Field, error) {
	byName := make(map[string]int, len(tpl.Fields))
	for i, field := range tpl.Fields {
		byName[field.Name] = i
	}

	columns := make([]*schema.Field, width)
	used := make(map[int]bool, len(tpl.Fields))
	var bad []ColumnError
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		idx, ok := byName[h]
		if !ok {
			bad = append(bad, ColumnError{
				Column:  h,
				Cell:    cell,
				Message: unknownColumnMessage(h, tpl.FieldNames()),
			})
			continue
		}
		if used[idx] {
			bad = append(bad, ColumnError{
				Column:  h,
				Cell:    cell,
				Message: duplicateColumnMessage(h),
			})
			continue
		}
		columns[i] = &tpl.Fields[idx]
		used[idx] = true
	}
	if len(bad) > 0 {
		return nil, &HeaderError{Sheet: sheet, Columns: bad, Valid: tpl.FieldNames()}
	}

	for i := range columns {
		if columns[i] != nil || i >= len(tpl.Fields) || used[i] {
			continue
		}
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			continue
		}
		columns[i] = &tpl.Fields[i]
		used[i] = true
	}
	return columns, nil
}

// reverseLookups builds the label -> code map of every single-valued
// validator column.
func reverseLookups(columns []*schema.Field, vs schema.ValidatorSet, logger *slog.Logger) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, field := range columns {
		if field == nil || field.Multiple {
			continue
		}
		ref, ok := field.ValidatorRef()
		if !ok {
			continue
		}
		v, ok := vs.Lookup(ref.Validator)
		if !ok {
			logger.Debug("validator not found for field",
				slog.String("field", field.Name),
				slog.String("validator", ref.Validator),
			)
			continue
		}
		if m := validators.ReverseLookup(v, ref.Column); len(m) > 0 {
			out[field.Name] = m
		}
	}
	return out
}

// readRow converts one sheet row. empty is true when every mapped cell is
// blank.
func readRow(f *excelize.File, sheet string, rowNum int, row []string, columns []*schema.Field, lookups map[string]map[string]string) (schema.Record, bool, error) {
	rec := make(schema.Record, len(columns))
	empty := true
	for i, field := range columns {
		if field == nil {
			continue
		}
		raw := ""
		if i < len(row) {
			raw = row[i]
		}
		if strings.TrimSpace(raw) == "" {
			rec[field.Name] = nil
			continue
		}
		empty = false

		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return nil, false, err
		}
		in := cellInput{raw: raw}
		if in.kind, err = f.GetCellType(sheet, cell); err != nil {
			return nil, false, fmt.Errorf("cell %s: %w", cell, err)
		}
		if field.DataType == schema.TypeLink {
			if ok, target, err := f.GetCellHyperLink(sheet, cell); err == nil && ok {
				in.link = target
			}
		}
		rec[field.Name] = sanitizeValue(convertCell(*field, in, lookups[field.Name]))
	}
	return rec, empty, nil
}
