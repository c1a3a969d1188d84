package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/reportsheets/internal/core"
	"github.com/JonMunkholm/reportsheets/internal/facets"
	"github.com/JonMunkholm/reportsheets/internal/logging"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/validators"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxFacetBody bounds the records sample posted to the facets endpoint.
const maxFacetBody = 10 << 20

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string             `json:"status"`
	Codec            core.LimiterStatus `json:"codec"`
	ValidatorsLoaded bool               `json:"validators_loaded"`
	Database         string             `json:"database,omitempty"`
	DatabaseMessage  string             `json:"database_message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:           "ok",
		Codec:            s.service.Limiter().Status(),
		ValidatorsLoaded: s.service.Registry().Loaded(),
	}
	status := http.StatusOK
	if s.ready != nil {
		resp.Database, resp.DatabaseMessage = s.ready.CheckReady(r.Context())
		if resp.Database != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, status, resp)
}

// handleTemplateWorkbook serves the admin workbook of a template. The
// guide sheet is included unless guide=false.
func (s *Server) handleTemplateWorkbook(w http.ResponseWriter, r *http.Request) {
	wb, err := s.service.ExportTemplate(r.Context(), chi.URLParam(r, "id"), queryBool(r, "guide", true))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.serveWorkbook(w, wb)
}

// handleProducerWorkbook serves a workbook prefilled with the records the
// producer already submitted.
func (s *Server) handleProducerWorkbook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wb, err := s.service.ExportProducerWorkbook(r.Context(),
		chi.URLParam(r, "id"),
		strings.TrimSpace(q.Get("pubTem")),
		strings.TrimSpace(q.Get("email")),
		queryBool(r, "guide", true),
	)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.serveWorkbook(w, wb)
}

func (s *Server) serveWorkbook(w http.ResponseWriter, wb *core.Workbook) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", wb.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(wb.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(wb.Data); err != nil {
		s.logger.Warn("write workbook", slog.String("file", wb.FileName), slog.String("error", err.Error()))
	}
}

// handleUpload parses an uploaded workbook and loads its records.
//
// Form fields: file (required), email, pubTem_id, edit.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	result, err := s.service.SubmitWorkbook(r.Context(), core.SubmitRequest{
		TemplateID: chi.URLParam(r, "id"),
		PubTemID:   strings.TrimSpace(r.FormValue("pubTem_id")),
		Email:      strings.TrimSpace(r.FormValue("email")),
		Edit:       formBool(r.FormValue("edit")),
		FileName:   header.Filename,
		File:       file,
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.WithFields(r.Context(),
		"template_id", chi.URLParam(r, "id"),
		"file", header.Filename,
	).Info("upload accepted", slog.Int("records", result.RecordsLoaded))
	s.writeJSON(w, http.StatusOK, result)
}

// handleImport parses an uploaded workbook and returns the records without
// submitting them.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	id := chi.URLParam(r, "id")
	result, err := s.service.ImportWorkbook(r.Context(), id, header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.WithFields(r.Context(), "template_id", id, "file", header.Filename).
		Debug("workbook imported", slog.Int("records", len(result.Records)))
	s.writeJSON(w, http.StatusOK, result)
}

// formFile limits the request body and returns the "file" part.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, tooLarge.Limit)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, errNoFile
		}
		return nil, nil, fmt.Errorf("%w: parse form: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}
	return file, header, nil
}

// FacetsRequest is the body of POST /api/templates/{id}/facets.
type FacetsRequest struct {
	Records []schema.Record `json:"records"`
}

// FacetsResponse lists one filter per template field.
type FacetsResponse struct {
	Filters []facets.Filter `json:"filters"`
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	var req FacetsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxFacetBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondErrorJSON(w, core.UserMessage{
			Message: "El cuerpo de la solicitud no es JSON válido",
			Action:  "Envía un objeto con la lista \"records\"",
			Code:    "REQ001",
		}, http.StatusBadRequest)
		return
	}
	normalizeNumbers(req.Records)

	filters, err := s.service.Facets(r.Context(), chi.URLParam(r, "id"), req.Records)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.writeJSON(w, http.StatusOK, FacetsResponse{Filters: filters})
}

// normalizeNumbers turns json.Number values into int64 or float64 so
// integer codes keep their exact text.
func normalizeNumbers(records []schema.Record) {
	for _, rec := range records {
		for k, v := range rec {
			rec[k] = normalizeValue(v)
		}
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
	}
	return v
}

// EnrichResponse pairs each value with its display label.
type EnrichResponse struct {
	Field   string              `json:"field"`
	Options []validators.Option `json:"options"`
}

// handleEnrich labels values of a field. values may be repeated or comma
// separated; loose=true enables structural matching.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field := strings.TrimSpace(q.Get("field"))
	if field == "" {
		respondErrorJSON(w, core.UserMessage{
			Message: "Falta el parámetro field",
			Action:  "Indica el nombre del campo a enriquecer",
			Code:    "REQ002",
		}, http.StatusBadRequest)
		return
	}

	var values []string
	for _, raw := range q["values"] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
	}

	options := s.service.EnrichValues(r.Context(), field, values, queryBool(r, "loose", false))
	if options == nil {
		options = []validators.Option{}
	}
	s.writeJSON(w, http.StatusOK, EnrichResponse{Field: field, Options: options})
}

// handleImportErrors renders a saved error log.
func (s *Server) handleImportErrors(w http.ResponseWriter, r *http.Request) {
	log, err := s.service.ErrorLog(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, log)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ErrorLogPage(log).Render(r.Context(), w); err != nil {
		s.logger.Error("render error log", slog.String("id", log.ID), slog.String("error", err.Error()))
	}
}

// queryBool reads a boolean query parameter, returning def when it is
// absent or malformed.
func queryBool(r *http.Request, key string, def bool) bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// formBool accepts the usual true spellings plus "si"/"sí"/"on".
func formBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "on", "yes", "si", "sí":
		return true
	}
	return false
}
