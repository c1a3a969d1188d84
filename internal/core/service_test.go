package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/facets"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/sheet"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

// fakeBackend serves templates and records from memory.
type fakeBackend struct {
	mu        sync.Mutex
	templates map[string]schema.Template
	getCalls  int
	merged    []schema.Record
	loadErr   error
	loaded    []backend.LoadRequest
}

func (f *fakeBackend) GetTemplate(_ context.Context, id string) (*schema.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	tpl, ok := f.templates[id]
	if !ok {
		return nil, &backend.StatusError{Op: "get template", Status: 404}
	}
	return &tpl, nil
}

func (f *fakeBackend) MergedData(_ context.Context, _, _ string) ([]schema.Record, error) {
	return f.merged, nil
}

func (f *fakeBackend) LoadRecords(_ context.Context, req backend.LoadRequest) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	f.loaded = append(f.loaded, req)
	return len(req.Data), nil
}

func sexValidator() schema.Validator {
	return schema.Validator{
		Name: "SEXO_BIOLOGICO",
		Columns: []schema.Column{
			{Name: "ID_SEXO", IsValidator: true, Values: []any{1.0, 2.0}},
			{Name: "DESCRIPCION", Values: []any{"Masculino", "Femenino"}},
		},
	}
}

func personTemplate() schema.Template {
	return schema.Template{
		Name:     "Personas",
		FileName: "personas.xlsx",
		Fields: []schema.Field{
			{Name: "NOMBRE", DataType: schema.TypeShortText, Required: true},
			{Name: "EDAD", DataType: schema.TypeInteger},
			{Name: "SEXO_BIOLOGICO", DataType: schema.TypeInteger, ValidateWith: "SEXO_BIOLOGICO - ID_SEXO"},
		},
	}
}

func newTestService(fb *fakeBackend) *Service {
	registry := validators.NewStaticRegistry([]schema.Validator{sexValidator()})
	return NewService(fb, fb, registry, Options{MaxRows: 100, MaxConcurrent: 2, MaxWaitTime: time.Second}, nil)
}

func TestService_TemplateCache(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	svc := newTestService(fb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tpl, err := svc.Template(ctx, "t1")
		if err != nil {
			t.Fatalf("Template() error = %v", err)
		}
		if tpl.ID != "t1" {
			t.Errorf("Template().ID = %q, want t1", tpl.ID)
		}
	}
	if fb.getCalls != 1 {
		t.Errorf("source calls = %d, want 1", fb.getCalls)
	}

	svc.InvalidateTemplate("t1")
	if _, err := svc.Template(ctx, "t1"); err != nil {
		t.Fatalf("Template() error = %v", err)
	}
	if fb.getCalls != 2 {
		t.Errorf("source calls after invalidate = %d, want 2", fb.getCalls)
	}

	if _, err := svc.Template(ctx, "missing"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("Template(missing) error = %v, want ErrTemplateNotFound", err)
	}
}

func TestService_InvalidTemplateRejected(t *testing.T) {
	bad := personTemplate()
	bad.Fields = append(bad.Fields, schema.Field{Name: "EDAD", DataType: schema.TypeInteger})
	fb := &fakeBackend{templates: map[string]schema.Template{"bad": bad}}
	svc := newTestService(fb)

	_, err := svc.ExportTemplate(context.Background(), "bad", false)
	if err == nil {
		t.Fatal("ExportTemplate() expected error for duplicate field")
	}
	if got := MapError(err).Code; got != "VAL003" {
		t.Errorf("MapError() code = %q, want VAL003", got)
	}
}

func TestService_ProducerRoundTrip(t *testing.T) {
	fb := &fakeBackend{
		templates: map[string]schema.Template{"t1": personTemplate()},
		merged: []schema.Record{
			{"NOMBRE": "Ana", "EDAD": 34.0, "SEXO_BIOLOGICO": 2.0},
			{"NOMBRE": "Luis", "EDAD": 51.0, "SEXO_BIOLOGICO": 1.0},
		},
	}
	svc := newTestService(fb)
	ctx := context.Background()

	wb, err := svc.ExportProducerWorkbook(ctx, "t1", "pub-9", "ana@example.org", false)
	if err != nil {
		t.Fatalf("ExportProducerWorkbook() error = %v", err)
	}
	if wb.FileName != "personas_ana.xlsx" {
		t.Errorf("FileName = %q, want personas_ana.xlsx", wb.FileName)
	}

	res, err := svc.SubmitWorkbook(ctx, SubmitRequest{
		TemplateID: "t1",
		PubTemID:   "pub-9",
		Email:      "ana@example.org",
		FileName:   wb.FileName,
		File:       bytes.NewReader(wb.Data),
	})
	if err != nil {
		t.Fatalf("SubmitWorkbook() error = %v", err)
	}
	if res.RecordsLoaded != 2 || res.RowsRead != 2 {
		t.Errorf("SubmitWorkbook() = %+v, want 2 records loaded from 2 rows", res)
	}

	if len(fb.loaded) != 1 {
		t.Fatalf("LoadRecords calls = %d, want 1", len(fb.loaded))
	}
	req := fb.loaded[0]
	if req.PubTemID != "pub-9" || req.Email != "ana@example.org" || req.Edit {
		t.Errorf("LoadRequest = %+v", req)
	}
	first := req.Data[0]
	if first["NOMBRE"] != "Ana" {
		t.Errorf("NOMBRE = %v, want Ana", first["NOMBRE"])
	}
	if first["EDAD"] != int64(34) {
		t.Errorf("EDAD = %#v, want int64(34)", first["EDAD"])
	}
	if first["SEXO_BIOLOGICO"] != int64(2) {
		t.Errorf("SEXO_BIOLOGICO = %#v, want int64(2)", first["SEXO_BIOLOGICO"])
	}
}

func TestService_ExportTemplateUsesEmbeddedValidators(t *testing.T) {
	tpl := schema.Template{
		Name: "Cursos",
		Fields: []schema.Field{
			{Name: "MODALIDAD", DataType: schema.TypeShortText, ValidateWith: "MODALIDAD_CURSO - ID"},
		},
		Validators: []schema.Validator{{
			Name: "MODALIDAD_CURSO",
			Columns: []schema.Column{
				{Name: "ID", IsValidator: true, Values: []any{"P", "V"}},
				{Name: "NOMBRE", Values: []any{"Presencial", "Virtual"}},
			},
		}},
	}
	svc := newTestService(&fakeBackend{templates: map[string]schema.Template{"c": tpl}})

	wb, err := svc.ExportTemplate(context.Background(), "c", true)
	if err != nil {
		t.Fatalf("ExportTemplate() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(wb.Data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet.ListSheetAdmin)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", sheet.ListSheetAdmin, err)
	}
	var got []string
	for _, row := range rows[1:] {
		got = append(got, row[0])
	}
	want := []string{"P - Presencial", "V - Virtual"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("list values = %v, want %v", got, want)
	}
}

func unknownColumnWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	row := []any{"NOMBRE", "COLOR", "TALLA"}
	if err := f.SetSheetRow("Sheet1", "A1", &row); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestService_SubmitUnknownColumns(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	svc := newTestService(fb)

	_, err := svc.SubmitWorkbook(context.Background(), SubmitRequest{
		TemplateID: "t1",
		FileName:   "subida.xlsx",
		File:       bytes.NewReader(unknownColumnWorkbook(t)),
	})

	var rejected *ImportRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("SubmitWorkbook() error = %v, want *ImportRejectedError", err)
	}
	var herr *sheet.HeaderError
	if !errors.As(err, &herr) {
		t.Errorf("error does not wrap *sheet.HeaderError: %v", err)
	}
	if len(fb.loaded) != 0 {
		t.Errorf("LoadRecords called %d times, want 0", len(fb.loaded))
	}

	log, err := svc.ErrorLog(rejected.LogID)
	if err != nil {
		t.Fatalf("ErrorLog() error = %v", err)
	}
	if log.FileName != "subida.xlsx" || log.TemplateName != "Personas" {
		t.Errorf("ErrorLog() = %+v", log)
	}
	if log.Total() != 2 || log.Columns[0].Column != "COLOR" || log.Columns[1].Column != "TALLA" {
		t.Errorf("ErrorLog().Columns = %+v, want COLOR and TALLA", log.Columns)
	}
}

func TestService_SubmitBackendRejection(t *testing.T) {
	fb := &fakeBackend{
		templates: map[string]schema.Template{"t1": personTemplate()},
		merged:    []schema.Record{{"NOMBRE": "Ana", "EDAD": 200.0}},
		loadErr: &backend.RejectionError{Details: []backend.ColumnDetail{
			{Column: "EDAD", Errors: []backend.RowError{{Register: 1, Message: "fuera de rango"}}},
		}},
	}
	svc := newTestService(fb)
	ctx := context.Background()

	wb, err := svc.ExportProducerWorkbook(ctx, "t1", "", "", false)
	if err != nil {
		t.Fatalf("ExportProducerWorkbook() error = %v", err)
	}

	_, err = svc.SubmitWorkbook(ctx, SubmitRequest{TemplateID: "t1", File: bytes.NewReader(wb.Data)})
	var rejected *ImportRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("SubmitWorkbook() error = %v, want *ImportRejectedError", err)
	}
	if got := MapError(err).Code; got != "VAL002" {
		t.Errorf("MapError() code = %q, want VAL002", got)
	}

	log, err := svc.ErrorLog(rejected.LogID)
	if err != nil {
		t.Fatalf("ErrorLog() error = %v", err)
	}
	want := RowProblem{Column: "EDAD", Register: 1, Message: "fuera de rango"}
	if len(log.Rows) != 1 || log.Rows[0] != want {
		t.Errorf("ErrorLog().Rows = %+v, want [%+v]", log.Rows, want)
	}
}

func TestService_ErrorLogNotFound(t *testing.T) {
	svc := newTestService(&fakeBackend{})
	for _, id := range []string{"", "not-a-uuid", "6f1c1f0e-1111-4a4a-9b9b-000000000000"} {
		if _, err := svc.ErrorLog(id); !errors.Is(err, ErrErrorLogNotFound) {
			t.Errorf("ErrorLog(%q) error = %v, want ErrErrorLogNotFound", id, err)
		}
	}
}

func TestService_ImportWithoutRecordStore(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	svc := NewService(fb, nil, nil, Options{}, nil)

	if _, err := svc.SubmitWorkbook(context.Background(), SubmitRequest{TemplateID: "t1"}); err == nil {
		t.Error("SubmitWorkbook() without record store expected error")
	}

	wb, err := svc.ExportTemplate(context.Background(), "t1", false)
	if err != nil {
		t.Fatalf("ExportTemplate() error = %v", err)
	}
	res, err := svc.ImportWorkbook(context.Background(), "t1", wb.FileName, bytes.NewReader(wb.Data))
	if err != nil {
		t.Fatalf("ImportWorkbook() error = %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("ImportWorkbook() records = %d, want 0 for an empty template workbook", len(res.Records))
	}
}

func TestService_Facets(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	svc := newTestService(fb)

	filters, err := svc.Facets(context.Background(), "t1", []schema.Record{
		{"NOMBRE": "Ana", "EDAD": 30.0, "SEXO_BIOLOGICO": 1.0},
		{"NOMBRE": "Luis", "EDAD": 41.0, "SEXO_BIOLOGICO": 2.0},
	})
	if err != nil {
		t.Fatalf("Facets() error = %v", err)
	}
	if len(filters) != 3 {
		t.Fatalf("Facets() returned %d filters, want 3", len(filters))
	}
	sex := filters[2]
	if sex.InputType != facets.InputRadio {
		t.Errorf("SEXO_BIOLOGICO input = %q, want %q", sex.InputType, facets.InputRadio)
	}
	if len(sex.Options) != 2 || sex.Options[0].Label != "1 - Masculino" {
		t.Errorf("SEXO_BIOLOGICO options = %+v", sex.Options)
	}
}

func TestWorkbookFileName(t *testing.T) {
	tests := []struct {
		tpl    schema.Template
		suffix string
		want   string
	}{
		{schema.Template{FileName: "reporte.xlsx"}, "", "reporte.xlsx"},
		{schema.Template{Name: "Informe: 2024/1"}, "", "Informe_ 2024_1.xlsx"},
		{schema.Template{Name: "Datos"}, "jefe@uni.edu", "Datos_jefe.xlsx"},
		{schema.Template{}, "", "plantilla.xlsx"},
	}

	for _, tt := range tests {
		if got := WorkbookFileName(tt.tpl, tt.suffix); got != tt.want {
			t.Errorf("WorkbookFileName(%+v, %q) = %q, want %q", tt.tpl, tt.suffix, got, tt.want)
		}
	}
}
