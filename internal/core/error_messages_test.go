package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/sheet"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"header error", fmt.Errorf("import: %w", &sheet.HeaderError{Sheet: "Datos"}), "VAL001"},
		{"rejected import wraps header error", &ImportRejectedError{LogID: "x", Err: &sheet.HeaderError{}}, "VAL001"},
		{"backend rejection", &backend.RejectionError{Message: "bad"}, "VAL002"},
		{"invalid template", fmt.Errorf("load template: %w", schema.Template{Name: "x"}.Validate()), "VAL003"},
		{"file too large", errors.New("http: request body too large"), "FILE001"},
		{"unreadable workbook", fmt.Errorf("%w: zip: not a valid zip file", sheet.ErrUnreadableWorkbook), "FILE002"},
		{"no data sheet", sheet.ErrNoDataSheet, "FILE003"},
		{"no file", errors.New("no file provided"), "FILE004"},
		{"empty sheet", sheet.ErrEmptySheet, "FILE005"},
		{"too many rows", fmt.Errorf("%w: limit 10", sheet.ErrTooManyRows), "FILE006"},
		{"template not found", fmt.Errorf("%w: t1", ErrTemplateNotFound), "BKD001"},
		{"backend 404", &backend.StatusError{Op: "get template", Status: 404}, "BKD001"},
		{"backend 503", &backend.StatusError{Op: "load", Status: 503}, "BKD002"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:80: connect: connection refused"), "BKD002"},
		{"backend 401", &backend.StatusError{Op: "load", Status: 401}, "BKD003"},
		{"too many jobs", ErrTooManyJobs, "UPL001"},
		{"cancelled", fmt.Errorf("export: %w", context.Canceled), "UPL002"},
		{"deadline", context.DeadlineExceeded, "UPL003"},
		{"error log expired", fmt.Errorf("%w: abc", ErrErrorLogNotFound), "UPL004"},
		{"rate limit", errors.New("Rate limit exceeded"), "RATE001"},
		{"unknown error", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(sheet.ErrEmptySheet)
	want := "La hoja de datos está vacía (Código: FILE005). Verifica que la primera fila contenga los encabezados"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"known error", ErrTooManyJobs, true},
		{"unknown error", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	userErr := NewUserError(ErrTooManyJobs)
	if userErr.Error() != "El sistema está procesando otros archivos" {
		t.Errorf("Error() = %q, want user message", userErr.Error())
	}
	if !errors.Is(userErr, ErrTooManyJobs) {
		t.Error("Unwrap() should return original error")
	}
}
