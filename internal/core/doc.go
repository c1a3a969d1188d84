// Package core runs the workbook pipelines of the service.
//
// It is independent of any transport and is used by the HTTP handlers and
// by tests without modification.
//
// # Export
//
// [Service.ExportTemplate] builds the empty workbook an administrator
// reviews; [Service.ExportProducerWorkbook] builds the one a producer fills
// in, pre-filled with the records already loaded for the published
// template. Both resolve validators against the template's embedded tables
// first and the shared registry second.
//
// # Import
//
// [Service.SubmitWorkbook] parses an upload and loads its records into the
// backend in one batch. Unknown header columns and backend rejections are
// saved as an [ErrorLog] under a random ID and returned as
// [*ImportRejectedError] so the caller can link to the log.
//
// # Limits
//
// Workbook builds and parses run inside a [CodecLimiter]. Templates are
// cached for a short time in a [TemplateCache].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError].
// Codes are grouped by category:
//
//   - VAL001-VAL003: header and record validation
//   - FILE001-FILE006: upload and workbook structure
//   - BKD001-BKD003: template source and backend availability
//   - UPL001-UPL004: concurrency, cancellation and expired logs
package core
