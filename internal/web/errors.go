package web

// errors.go turns service errors into HTTP responses.
//
// The technical error is logged with the request ID. The client gets the
// mapped user message from core.MapError, as JSON under /api and as a
// rendered page elsewhere.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/core"
	"github.com/JonMunkholm/reportsheets/internal/logging"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/sheet"
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// RejectionResponse is returned when an upload was refused and the
// reasons were saved as an error log.
type RejectionResponse struct {
	ErrorResponse
	ErrorLogID   string              `json:"errorLogId"`
	ErrorLogURL  string              `json:"errorLogUrl"`
	Columns      []sheet.ColumnError `json:"columns,omitempty"`
	ValidColumns []string            `json:"validColumns,omitempty"`
	Rows         []core.RowProblem   `json:"rows,omitempty"`
}

// statusFor picks the HTTP status of a service error.
func statusFor(err error) int {
	var (
		rejected *core.ImportRejectedError
		status   *backend.StatusError
	)
	switch {
	case errors.As(err, &rejected):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTemplateNotFound),
		errors.Is(err, core.ErrErrorLogNotFound),
		errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyJobs):
		return http.StatusServiceUnavailable
	case errors.Is(err, sheet.ErrTooManyRows):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sheet.ErrUnreadableWorkbook),
		errors.Is(err, sheet.ErrNoDataSheet),
		errors.Is(err, sheet.ErrEmptySheet),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &status):
		return http.StatusBadGateway
	case errors.Is(err, schema.ErrInvalidTemplate):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message. Upload
// rejections include the saved error log.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	level := logger.Warn
	if statusCode >= http.StatusInternalServerError {
		level = logger.Error
	}
	level("request error",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("code", userMsg.Code),
	)

	if !wantsJSON(r) {
		s.renderErrorPage(w, r, userMsg, statusCode)
		return
	}

	var rejected *core.ImportRejectedError
	if errors.As(err, &rejected) {
		s.writeJSON(w, statusCode, s.rejection(userMsg, rejected.LogID))
		return
	}
	respondErrorJSON(w, userMsg, statusCode)
}

// rejection builds the upload refusal body from the saved error log.
func (s *Server) rejection(msg core.UserMessage, logID string) RejectionResponse {
	resp := RejectionResponse{
		ErrorResponse: toErrorResponse(msg),
		ErrorLogID:    logID,
		ErrorLogURL:   "/import-errors/" + logID,
	}
	if log, err := s.service.ErrorLog(logID); err == nil {
		resp.Columns = log.Columns
		resp.ValidColumns = log.ValidColumns
		resp.Rows = log.Rows
	}
	return resp
}

func toErrorResponse(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(toErrorResponse(msg))
}

// renderErrorPage writes the HTML error page.
func (s *Server) renderErrorPage(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := ErrorPage(msg).Render(r.Context(), w); err != nil {
		s.logger.Error("render error page", slog.String("error", err.Error()))
	}
}

// wantsJSON reports whether the client prefers a JSON response. API
// routes always do.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
