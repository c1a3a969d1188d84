package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/config"
	"github.com/JonMunkholm/reportsheets/internal/core"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

// fakeBackend serves templates and records from memory.
type fakeBackend struct {
	mu        sync.Mutex
	templates map[string]schema.Template
	merged    []schema.Record
	loadErr   error
	loaded    []backend.LoadRequest
}

func (f *fakeBackend) GetTemplate(_ context.Context, id string) (*schema.Template, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, &backend.StatusError{Op: "get template", Status: http.StatusNotFound}
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

type stubReady struct {
	status, message string
}

func (s stubReady) CheckReady(context.Context) (string, string) {
	return s.status, s.message
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

func testConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()
	vars := map[string]string{
		"BACKEND_URL":        "http://api.local",
		"RATE_LIMIT_ENABLED": "false",
	}
	for k, v := range overrides {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, fb *fakeBackend, ready ReadinessChecker, overrides map[string]string) *Server {
	t.Helper()
	registry := validators.NewStaticRegistry([]schema.Validator{{
		Name: "SEXO_BIOLOGICO",
		Columns: []schema.Column{
			{Name: "ID_SEXO", IsValidator: true, Values: []any{1.0, 2.0}},
			{Name: "DESCRIPCION", Values: []any{"Masculino", "Femenino"}},
		},
	}})
	svc := core.NewService(fb, fb, registry, core.Options{
		MaxRows:       100,
		MaxConcurrent: 2,
		MaxWaitTime:   time.Second,
	}, nil)
	s := NewServer(svc, testConfig(t, overrides), ready, nil)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, fileName string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mpw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mpw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if data != nil {
		part, err := mpw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := mpw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"database ok", stubReady{status: "ok"}, http.StatusOK, "ok"},
		{"database down", stubReady{status: "fail", message: "refused"}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeBackend{}, tt.ready, nil)
			rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decode[HealthResponse](t, rec)
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantBody)
			}
			if resp.Codec.MaxConcurrent != 2 {
				t.Errorf("Codec.MaxConcurrent = %d, want 2", resp.Codec.MaxConcurrent)
			}
		})
	}
}

func TestTemplateWorkbook(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	s := newTestServer(t, fb, nil, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/templates/t1/workbook?guide=false", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="personas.xlsx"`) {
		t.Errorf("Content-Disposition = %q", got)
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	found := false
	for _, name := range f.GetSheetList() {
		if v, _ := f.GetCellValue(name, "A1"); v == "NOMBRE" {
			found = true
		}
	}
	if !found {
		t.Errorf("no sheet in %v has NOMBRE in A1", f.GetSheetList())
	}
}

func TestTemplateWorkbook_NotFound(t *testing.T) {
	s := newTestServer(t, &fakeBackend{}, nil, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/templates/nope/workbook", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Code != "BKD001" {
		t.Errorf("Code = %q, want BKD001", resp.Code)
	}
}

func TestUpload_ProducerRoundTrip(t *testing.T) {
	fb := &fakeBackend{
		templates: map[string]schema.Template{"t1": personTemplate()},
		merged:    []schema.Record{{"NOMBRE": "Ana", "EDAD": 34.0, "SEXO_BIOLOGICO": 2.0}},
	}
	s := newTestServer(t, fb, nil, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/templates/t1/producer-workbook?email=ana@example.com&pubTem=p1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("producer-workbook status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "personas_ana.xlsx") {
		t.Errorf("Content-Disposition = %q, want personas_ana.xlsx", got)
	}

	req := uploadRequest(t, "/api/templates/t1/upload", "personas_ana.xlsx", rec.Body.Bytes(), map[string]string{
		"email":     "ana@example.com",
		"pubTem_id": "p1",
		"edit":      "true",
	})
	rec = do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[core.SubmitResult](t, rec)
	if result.RecordsLoaded != 1 {
		t.Errorf("RecordsLoaded = %d, want 1", result.RecordsLoaded)
	}

	if len(fb.loaded) != 1 {
		t.Fatalf("LoadRecords calls = %d, want 1", len(fb.loaded))
	}
	got := fb.loaded[0]
	if got.Email != "ana@example.com" || got.PubTemID != "p1" || !got.Edit {
		t.Errorf("LoadRequest = %+v", got)
	}
	if got.Data[0]["NOMBRE"] != "Ana" {
		t.Errorf("NOMBRE = %v, want Ana", got.Data[0]["NOMBRE"])
	}
}

func unknownColumnWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	row := []any{"NOMBRE", "COLOR"}
	if err := f.SetSheetRow("Sheet1", "A1", &row); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestUpload_UnknownColumns(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	s := newTestServer(t, fb, nil, nil)

	rec := do(s, uploadRequest(t, "/api/templates/t1/upload", "mal.xlsx", unknownColumnWorkbook(t), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	resp := decode[RejectionResponse](t, rec)
	if resp.Code != "VAL001" || resp.ErrorLogID == "" {
		t.Fatalf("response = %+v, want VAL001 with error log", resp)
	}
	if len(resp.Columns) != 1 || resp.Columns[0].Column != "COLOR" {
		t.Errorf("Columns = %+v, want COLOR", resp.Columns)
	}
	if len(fb.loaded) != 0 {
		t.Errorf("LoadRecords calls = %d, want 0", len(fb.loaded))
	}

	page := do(s, httptest.NewRequest(http.MethodGet, resp.ErrorLogURL, nil))
	if page.Code != http.StatusOK {
		t.Fatalf("error log status = %d", page.Code)
	}
	if ct := page.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := page.Body.String()
	for _, want := range []string{"Personas", "mal.xlsx", "COLOR", "B1"} {
		if !strings.Contains(body, want) {
			t.Errorf("error log page missing %q", want)
		}
	}
}

func TestUpload_BackendRejection(t *testing.T) {
	fb := &fakeBackend{
		templates: map[string]schema.Template{"t1": personTemplate()},
		merged:    []schema.Record{{"NOMBRE": "<b>Ana</b>", "EDAD": 200.0}},
		loadErr: &backend.RejectionError{Details: []backend.ColumnDetail{
			{Column: "EDAD", Errors: []backend.RowError{{Register: 1, Message: "fuera de <rango>"}}},
		}},
	}
	s := newTestServer(t, fb, nil, nil)

	wb := do(s, httptest.NewRequest(http.MethodGet, "/api/templates/t1/producer-workbook", nil))
	rec := do(s, uploadRequest(t, "/api/templates/t1/upload", "x.xlsx", wb.Body.Bytes(), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decode[RejectionResponse](t, rec)
	if resp.Code != "VAL002" || len(resp.Rows) != 1 || resp.Rows[0].Register != 1 {
		t.Fatalf("response = %+v", resp)
	}

	page := do(s, httptest.NewRequest(http.MethodGet, "/import-errors/"+resp.ErrorLogID, nil))
	body := page.Body.String()
	if !strings.Contains(body, "fuera de &lt;rango&gt;") {
		t.Errorf("error log page does not escape messages: %s", body)
	}
}

func TestUpload_BadRequests(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}

	tests := []struct {
		name       string
		overrides  map[string]string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name: "no file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/templates/t1/upload", "", nil, map[string]string{"email": "a@b.c"})
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/templates/t1/upload", strings.NewReader("{}"))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name: "not a workbook",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/templates/t1/upload", "x.xlsx", []byte("hola"), nil)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
		},
		{
			name:      "file too large",
			overrides: map[string]string{"UPLOAD_MAX_FILE_SIZE": "1024"},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/templates/t1/upload", "x.xlsx", bytes.Repeat([]byte("x"), 4096), nil)
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
		{
			name: "unknown template",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/templates/zz/upload", "x.xlsx", unknownColumnWorkbook(t), nil)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "BKD001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, fb, nil, tt.overrides)
			rec := do(s, tt.req(t))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestImport_ReturnsRecords(t *testing.T) {
	fb := &fakeBackend{
		templates: map[string]schema.Template{"t1": personTemplate()},
		merged:    []schema.Record{{"NOMBRE": "Ana", "EDAD": 34.0}, {"NOMBRE": "Luis"}},
	}
	s := newTestServer(t, fb, nil, nil)

	wb := do(s, httptest.NewRequest(http.MethodGet, "/api/templates/t1/producer-workbook", nil))
	rec := do(s, uploadRequest(t, "/api/templates/t1/import", "x.xlsx", wb.Body.Bytes(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if result.Records[1]["NOMBRE"] != "Luis" {
		t.Errorf("records[1].NOMBRE = %v, want Luis", result.Records[1]["NOMBRE"])
	}
	if len(fb.loaded) != 0 {
		t.Errorf("import submitted %d batches, want 0", len(fb.loaded))
	}
}

func TestFacets(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	s := newTestServer(t, fb, nil, nil)

	body := `{"records":[{"NOMBRE":"Ana","EDAD":34,"SEXO_BIOLOGICO":1},{"NOMBRE":"Luis","EDAD":40,"SEXO_BIOLOGICO":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/templates/t1/facets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[FacetsResponse](t, rec)
	want := []string{"NOMBRE", "EDAD", "SEXO_BIOLOGICO"}
	if len(resp.Filters) != len(want) {
		t.Fatalf("filters = %d, want %d", len(resp.Filters), len(want))
	}
	for i, name := range want {
		if resp.Filters[i].FieldName != name {
			t.Errorf("filters[%d] = %q, want %q", i, resp.Filters[i].FieldName, name)
		}
	}
}

func TestFacets_BadJSON(t *testing.T) {
	fb := &fakeBackend{templates: map[string]schema.Template{"t1": personTemplate()}}
	s := newTestServer(t, fb, nil, nil)

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/templates/t1/facets", strings.NewReader("{nope")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{json.Number("3"), int64(3)},
		{json.Number("2.5"), 2.5},
		{"x", "x"},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := normalizeValue(tt.in); got != tt.want {
			t.Errorf("normalizeValue(%v) = %v (%T), want %v", tt.in, got, got, tt.want)
		}
	}

	list := normalizeValue([]any{json.Number("1"), "a"}).([]any)
	if list[0] != int64(1) || list[1] != "a" {
		t.Errorf("normalizeValue(list) = %v", list)
	}
}

func TestEnrich(t *testing.T) {
	s := newTestServer(t, &fakeBackend{}, nil, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/validators/enrich?field=SEXO_BIOLOGICO&values=1,2&values=9", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[EnrichResponse](t, rec)
	want := []string{"1 - Masculino", "2 - Femenino", "9"}
	if len(resp.Options) != len(want) {
		t.Fatalf("options = %+v, want %v", resp.Options, want)
	}
	for i := range want {
		if resp.Options[i].Label != want[i] {
			t.Errorf("options[%d].Label = %q, want %q", i, resp.Options[i].Label, want[i])
		}
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/validators/enrich", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want 400", rec.Code)
	}
}

func TestImportErrors_NotFound(t *testing.T) {
	s := newTestServer(t, &fakeBackend{}, nil, nil)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/import-errors/00000000-0000-0000-0000-000000000000", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UPL004") {
		t.Errorf("page does not show UPL004: %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/import-errors/bad-id", nil)
	req.Header.Set("Accept", "application/json")
	rec = do(s, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("json status = %d, want 404", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "UPL004" {
		t.Errorf("Code = %q, want UPL004", resp.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, &fakeBackend{}, nil, map[string]string{
		"REQUIRE_API_KEY": "true",
		"API_KEYS":        "k1,k2",
	})

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/validators/enrich?field=X", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/validators/enrich?field=X", nil)
	req.Header.Set("X-API-Key", "k2")
	if rec := do(s, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without key", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &fakeBackend{}, nil, map[string]string{
		"RATE_LIMIT_ENABLED":             "true",
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "2",
	})

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		codes[i] = do(s, req).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// A different client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.8:5000"
	if rec := do(s, req); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := &rateLimiter{visitors: make(map[string]*visitor), rate: 1, window: time.Minute, done: make(chan struct{})}

	if !rl.allow("a") {
		t.Fatal("first request denied")
	}
	if rl.allow("a") {
		t.Fatal("second request allowed within window")
	}
	rl.visitors["a"].lastReset = time.Now().Add(-2 * time.Minute)
	if !rl.allow("a") {
		t.Error("request denied after window passed")
	}
	rl.stop()
	rl.stop()
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, &fakeBackend{}, nil, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeBackend{}, nil, nil)
	_ = do(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !bytes.Contains(body, []byte("reportsheets_http_requests_total")) {
		t.Error("metrics output missing reportsheets_http_requests_total")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrTemplateNotFound, http.StatusNotFound},
		{core.ErrTooManyJobs, http.StatusServiceUnavailable},
		{&core.ImportRejectedError{LogID: "x", Err: io.EOF}, http.StatusBadRequest},
		{&backend.StatusError{Status: 502}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: limit 10 bytes", errFileTooLarge), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("parse form: %w", errNoFile), http.StatusBadRequest},
		{fmt.Errorf("get template: %w", schema.Template{Name: "x"}.Validate()), http.StatusUnprocessableEntity},
		{errors.New("invalid template name in log line"), http.StatusInternalServerError},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
