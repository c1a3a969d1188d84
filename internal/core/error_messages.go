package core

// error_messages.go maps technical errors to messages shown to producers.
//
// Codes are grouped by category so users can quote them to support:
//
//	VAL001 - Unknown columns in the uploaded sheet (*sheet.HeaderError)
//	VAL002 - Backend rejected some records (*backend.RejectionError)
//	VAL003 - Template definition is invalid (schema.ErrInvalidTemplate)
//
//	FILE001 - File too large
//	FILE002 - Not a readable .xlsx workbook (sheet.ErrUnreadableWorkbook)
//	FILE003 - No visible data sheet (sheet.ErrNoDataSheet)
//	FILE004 - No file provided
//	FILE005 - Data sheet is empty (sheet.ErrEmptySheet)
//	FILE006 - Too many rows (sheet.ErrTooManyRows)
//
//	BKD001 - Template not found (ErrTemplateNotFound, backend.ErrNotFound)
//	BKD002 - Backend unavailable (5xx, connection refused or reset)
//	BKD003 - Backend refused the credentials (401, 403)
//
//	UPL001 - System busy (ErrTooManyJobs)
//	UPL002 - Request cancelled
//	UPL003 - Request timed out
//	UPL004 - Error log expired (ErrErrorLogNotFound)
//
//	RATE001 - Rate limited
//
//	ERR000 - Anything else. Check the logs for the technical error.
//
// Typed errors are checked with errors.Is / errors.As first. Text patterns
// are matched case-insensitively afterwards; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/schema"
	"github.com/JonMunkholm/reportsheets/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// errorRule maps a class of errors to a user message.
type errorRule struct {
	match func(err error, lower string) bool
	msg   UserMessage
}

func is(target error) func(error, string) bool {
	return func(err error, _ string) bool { return errors.Is(err, target) }
}

func contains(patterns ...string) func(error, string) bool {
	return func(_ error, lower string) bool {
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}

func backendStatus(lo, hi int) func(error, string) bool {
	return func(err error, _ string) bool {
		var se *backend.StatusError
		return errors.As(err, &se) && se.Status >= lo && se.Status <= hi
	}
}

var errorRules = []errorRule{
	// Validation
	{
		match: func(err error, _ string) bool {
			var herr *sheet.HeaderError
			return errors.As(err, &herr)
		},
		msg: UserMessage{
			Message: "El archivo tiene columnas que no existen en la plantilla",
			Action:  "Revisa el registro de errores y corrige los encabezados",
			Code:    "VAL001",
		},
	},
	{
		match: func(err error, _ string) bool {
			var rej *backend.RejectionError
			return errors.As(err, &rej)
		},
		msg: UserMessage{
			Message: "Algunos registros no pasaron la validación",
			Action:  "Revisa el registro de errores, corrige las filas indicadas y vuelve a cargar",
			Code:    "VAL002",
		},
	},
	{
		match: is(schema.ErrInvalidTemplate),
		msg: UserMessage{
			Message: "La definición de la plantilla no es válida",
			Action:  "Contacta al administrador de la plantilla",
			Code:    "VAL003",
		},
	},

	// File
	{
		match: contains("file too large", "request body too large"),
		msg: UserMessage{
			Message: "El archivo supera el tamaño máximo permitido",
			Action:  "Divide los datos en archivos más pequeños",
			Code:    "FILE001",
		},
	},
	{
		match: is(sheet.ErrUnreadableWorkbook),
		msg: UserMessage{
			Message: "El archivo no es un libro de Excel válido",
			Action:  "Guarda el archivo en formato .xlsx y vuelve a intentarlo",
			Code:    "FILE002",
		},
	},
	{
		match: is(sheet.ErrNoDataSheet),
		msg: UserMessage{
			Message: "El libro no tiene una hoja de datos visible",
			Action:  "Usa el libro descargado desde la plantilla",
			Code:    "FILE003",
		},
	},
	{
		match: contains("no file provided"),
		msg: UserMessage{
			Message: "No se seleccionó ningún archivo",
			Action:  "Selecciona un archivo .xlsx para cargar",
			Code:    "FILE004",
		},
	},
	{
		match: is(sheet.ErrEmptySheet),
		msg: UserMessage{
			Message: "La hoja de datos está vacía",
			Action:  "Verifica que la primera fila contenga los encabezados",
			Code:    "FILE005",
		},
	},
	{
		match: is(sheet.ErrTooManyRows),
		msg: UserMessage{
			Message: "El archivo tiene más filas de las permitidas",
			Action:  "Divide los datos en varios archivos",
			Code:    "FILE006",
		},
	},

	// Backend
	{
		match: func(err error, lower string) bool {
			return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, backend.ErrNotFound)
		},
		msg: UserMessage{
			Message: "La plantilla no existe",
			Action:  "Verifica el enlace o solicita uno nuevo",
			Code:    "BKD001",
		},
	},
	{
		match: backendStatus(http.StatusUnauthorized, http.StatusForbidden),
		msg: UserMessage{
			Message: "El servidor de reportes rechazó las credenciales",
			Action:  "Contacta al administrador",
			Code:    "BKD003",
		},
	},
	{
		match: func(err error, lower string) bool {
			return backendStatus(500, 599)(err, lower) || contains("connection refused", "connection reset", "no such host")(err, lower)
		},
		msg: UserMessage{
			Message: "El servidor de reportes no está disponible",
			Action:  "Intenta de nuevo en unos minutos",
			Code:    "BKD002",
		},
	},

	// Upload
	{
		match: is(ErrTooManyJobs),
		msg: UserMessage{
			Message: "El sistema está procesando otros archivos",
			Action:  "Espera un momento y vuelve a intentarlo",
			Code:    "UPL001",
		},
	},
	{
		match: func(err error, lower string) bool {
			return errors.Is(err, context.Canceled) || strings.Contains(lower, "context canceled")
		},
		msg: UserMessage{
			Message: "La solicitud fue cancelada",
			Action:  "Vuelve a intentarlo",
			Code:    "UPL002",
		},
	},
	{
		match: func(err error, lower string) bool {
			return errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout")
		},
		msg: UserMessage{
			Message: "La solicitud tardó demasiado",
			Action:  "Intenta con un archivo más pequeño o vuelve a intentarlo",
			Code:    "UPL003",
		},
	},
	{
		match: is(ErrErrorLogNotFound),
		msg: UserMessage{
			Message: "El registro de errores ya no está disponible",
			Action:  "Vuelve a cargar el archivo para generar uno nuevo",
			Code:    "UPL004",
		},
	},

	// Rate limiting
	{
		match: contains("rate limit"),
		msg: UserMessage{
			Message: "Demasiadas solicitudes",
			Action:  "Espera un momento antes de volver a intentarlo",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no rule matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Vuelve a intentarlo o contacta a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	lower := strings.ToLower(err.Error())
	for _, rule := range errorRules {
		if rule.match(err, lower) {
			return rule.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Código: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
